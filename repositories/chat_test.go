package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"trenchsocial/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Append_And_Recent_Oldest_First(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), slog.Default(), 100)

	at := time.Now().UTC()
	authors := []string{"alice", "bob", "clara"}
	for i, author := range authors {
		id, err := repository.AppendChat(domain.ChatMessage{
			Author:      author,
			Body:        fmt.Sprintf("message %d", i),
			PublishedAt: at.Add(time.Duration(i) * time.Minute),
		})
		req.NoError(err)
		req.NotEqual(id.String(), "00000000-0000-0000-0000-000000000000")
	}

	messages, err := repository.RecentChat(100)
	req.NoError(err)
	req.Len(messages, 3)
	for i, author := range authors {
		req.Equal(author, messages[i].Author)
	}
}

func Test_Recent_Empty_Store(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), slog.Default(), 100)

	messages, err := repository.RecentChat(100)
	req.NoError(err)
	req.Empty(messages)
}

func Test_Cap_Eviction_Keeps_Last_100(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), slog.Default(), 100)

	for i := 1; i <= 105; i++ {
		_, err := repository.AppendChat(domain.ChatMessage{
			Author:      "alice",
			Body:        fmt.Sprintf("message %d", i),
			PublishedAt: time.Unix(0, int64(i)).UTC(),
		})
		req.NoError(err)

		count, err := repository.Count()
		req.NoError(err)
		req.LessOrEqual(count, 100)
	}

	messages, err := repository.RecentChat(100)
	req.NoError(err)
	req.Len(messages, 100)
	req.EqualValues(6, messages[0].PublishedAt.UnixNano())
	req.EqualValues(105, messages[99].PublishedAt.UnixNano())
	for i := 1; i < len(messages); i++ {
		req.True(messages[i].PublishedAt.After(messages[i-1].PublishedAt))
	}
}

func Test_Append_Error_Means_Not_Stored(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), slog.Default(), 2)

	// Appends that trigger eviction still report success with the stored id:
	// once the message is durable, only the append itself can fail the call.
	at := time.Now().UTC()
	var lastID string
	for i := 0; i < 5; i++ {
		id, err := repository.AppendChat(domain.ChatMessage{
			Author:      "alice",
			Body:        fmt.Sprintf("message %d", i),
			PublishedAt: at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
		lastID = id.String()
	}

	messages, err := repository.RecentChat(2)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal(lastID, messages[1].ID.String())
}

func Test_Eviction_Is_Explicit(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	at := time.Now().UTC()

	// Fill without triggering eviction, then enforce a smaller cap.
	loose := NewChatRepository(db, slog.Default(), 10)
	for i := 0; i < 5; i++ {
		_, err := loose.AppendChat(domain.ChatMessage{
			Author:      "alice",
			Body:        fmt.Sprintf("message %d", i),
			PublishedAt: at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	tight := NewChatRepository(db, slog.Default(), 3)
	evicted, err := tight.EvictOverCap()
	req.NoError(err)
	req.Equal(2, evicted)

	messages, err := tight.RecentChat(10)
	req.NoError(err)
	req.Len(messages, 3)
	req.Equal("message 2", messages[0].Body)

	// Under the cap, a second run removes nothing.
	evicted, err = tight.EvictOverCap()
	req.NoError(err)
	req.Zero(evicted)
}

func Test_Eviction_Tie_Broken_By_Insertion_Order(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), slog.Default(), 2)

	at := time.Now().UTC()
	for _, body := range []string{"first", "second", "third"} {
		_, err := repository.AppendChat(domain.ChatMessage{
			Author:      "alice",
			Body:        body,
			PublishedAt: at,
		})
		req.NoError(err)
	}

	messages, err := repository.RecentChat(2)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("second", messages[0].Body)
	req.Equal("third", messages[1].Body)
}

func Test_Recent_Respects_Limit(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), slog.Default(), 100)

	at := time.Now().UTC()
	for i := 0; i < 10; i++ {
		_, err := repository.AppendChat(domain.ChatMessage{
			Author:      "alice",
			Body:        fmt.Sprintf("message %d", i),
			PublishedAt: at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	messages, err := repository.RecentChat(4)
	req.NoError(err)
	req.Len(messages, 4)
	req.Equal("message 6", messages[0].Body)
	req.Equal("message 9", messages[3].Body)
}
