package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"trenchsocial/domain"
	apperrors "trenchsocial/errors"
	"trenchsocial/projection"
	"trenchsocial/repositories"
)

type fixture struct {
	users    *repositories.UserRepository
	messages *repositories.PrivateMessageRepository
	service  *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repositories.NewUserRepository(db, slog.Default())
	messages := repositories.NewPrivateMessageRepository(db, slog.Default())
	return &fixture{
		users:    users,
		messages: messages,
		service: NewMessageService(slog.Default(), users, messages,
			projection.NewConversationIndexer(messages)),
	}
}

func (f *fixture) user(t *testing.T, name string) domain.User {
	t.Helper()
	user, err := f.users.Create(domain.User{Name: name, Username: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return user
}

func Test_Send_Resolves_Receiver_By_Username(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	message, err := f.service.Send(alice.ID, "bob", "hi bob")
	req.NoError(err)
	req.Equal(bob.ID, message.ReceiverID)
	req.False(message.SentAt.IsZero())

	thread, err := f.service.Between(alice.ID, bob.ID)
	req.NoError(err)
	req.Len(thread, 1)
	req.Equal("hi bob", thread[0].Body)
	req.Equal("alice", thread[0].Sender.Username)
	req.Equal("bob", thread[0].Receiver.Username)
}

func Test_Send_Unknown_Receiver_Fails(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.service.Send(alice.ID, "nobody", "hello?")
	req.ErrorIs(err, apperrors.ErrReceiverNotFound)
}

func Test_Send_Unknown_Sender_Fails(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "bob")

	_, err := f.service.Send("missing-id", "bob", "hello?")
	req.ErrorIs(err, apperrors.ErrUserNotFound)
}

func Test_Conversations_Join_Counterpart_Profiles(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.user(t, "alice")
	f.user(t, "bob")
	f.user(t, "clara")

	_, err := f.service.Send(alice.ID, "bob", "first")
	req.NoError(err)
	_, err = f.service.Send(alice.ID, "clara", "second")
	req.NoError(err)

	conversations, err := f.service.Conversations(alice.ID)
	req.NoError(err)
	req.Equal([]string{"clara", "bob"}, lo.Map(conversations,
		func(view ConversationView, _ int) string { return view.User.Username }))
	req.Equal("second", conversations[0].LastMessage.Body)
}

func Test_Conversations_Drop_Vanished_Counterparts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.user(t, "alice")
	f.user(t, "bob")

	_, err := f.service.Send(alice.ID, "bob", "to bob")
	req.NoError(err)
	// A message addressed to an id with no user record behind it, as happens
	// when accounts are purged out of band.
	_, err = f.messages.Append(domain.PrivateMessage{
		SenderID: alice.ID, ReceiverID: "gone", Body: "to nobody", SentAt: time.Now().UTC(),
	})
	req.NoError(err)

	conversations, err := f.service.Conversations(alice.ID)
	req.NoError(err)
	req.Len(conversations, 1)
	req.Equal("bob", conversations[0].User.Username)
}
