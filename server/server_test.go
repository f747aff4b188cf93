package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"trenchsocial/observability"
	"trenchsocial/projection"
	"trenchsocial/repositories"
	"trenchsocial/runtime"
	"trenchsocial/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repositories.NewUserRepository(db, log)
	chat := repositories.NewChatRepository(db, log, 100)
	private := repositories.NewPrivateMessageRepository(db, log)
	posts := repositories.NewPostRepository(db, log)
	reports := repositories.NewReportRepository(db, log)

	stats := observability.NewHubStats()
	hub := runtime.NewBroadcastHub(log, chat, users,
		runtime.NewPresenceTracker(log), stats, 100, 500, 64)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	t.Cleanup(cancel)

	messages := services.NewMessageService(log, users, private,
		projection.NewConversationIndexer(private))

	server := New(log, hub, messages, users, posts, reports, stats,
		"127.0.0.1:0", 64, time.Second)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })
	return response
}

func decode[T any](t *testing.T, response *http.Response) T {
	t.Helper()
	var value T
	require.NoError(t, json.NewDecoder(response.Body).Decode(&value))
	return value
}

func createUser(t *testing.T, baseURL, username string) map[string]any {
	t.Helper()
	response := doJSON(t, http.MethodPost, baseURL+"/api/users", map[string]string{
		"name":     strings.ToUpper(username[:1]) + username[1:],
		"username": username,
		"email":    username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, response.StatusCode)
	return decode[map[string]any](t, response)
}

func Test_User_Listing_Is_Sanitized(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	createUser(t, ts.URL, "alice")

	response := doJSON(t, http.MethodGet, ts.URL+"/api/users", nil)
	req.Equal(http.StatusOK, response.StatusCode)

	profiles := decode[[]map[string]any](t, response)
	req.Len(profiles, 1)
	req.Equal("alice", profiles[0]["username"])
	req.NotContains(profiles[0], "email")
	req.NotContains(profiles[0], "verified")
}

func Test_Duplicate_Username_Conflicts(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	createUser(t, ts.URL, "alice")

	response := doJSON(t, http.MethodPost, ts.URL+"/api/users", map[string]string{
		"name": "Alice Again", "username": "alice", "email": "other@example.com",
	})
	req.Equal(http.StatusConflict, response.StatusCode)
}

func Test_Create_User_Requires_Valid_Email(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	response := doJSON(t, http.MethodPost, ts.URL+"/api/users", map[string]string{
		"name": "Alice", "username": "alice", "email": "not-an-email",
	})
	req.Equal(http.StatusBadRequest, response.StatusCode)
}

func Test_Private_Message_Round_Trip(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	alice := createUser(t, ts.URL, "alice")
	bob := createUser(t, ts.URL, "bob")

	response := doJSON(t, http.MethodPost, ts.URL+"/api/messages", map[string]string{
		"senderId": alice["id"].(string), "receiverUsername": "bob", "content": "hi bob",
	})
	req.Equal(http.StatusCreated, response.StatusCode)

	response = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/messages/conversations/%s", ts.URL, bob["id"]), nil)
	req.Equal(http.StatusOK, response.StatusCode)
	conversations := decode[[]map[string]any](t, response)
	req.Len(conversations, 1)
	req.Equal("alice", conversations[0]["user"].(map[string]any)["username"])

	response = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/messages/between/%s/%s", ts.URL, alice["id"], bob["id"]), nil)
	req.Equal(http.StatusOK, response.StatusCode)
	thread := decode[[]map[string]any](t, response)
	req.Len(thread, 1)
	req.Equal("hi bob", thread[0]["content"])
}

func Test_Message_To_Unknown_Receiver_Is_400(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	alice := createUser(t, ts.URL, "alice")

	response := doJSON(t, http.MethodPost, ts.URL+"/api/messages", map[string]string{
		"senderId": alice["id"].(string), "receiverUsername": "nobody", "content": "hello?",
	})
	req.Equal(http.StatusBadRequest, response.StatusCode)
	req.Equal("Receiver not found.", decode[map[string]any](t, response)["message"])
}

func Test_Post_Lifecycle(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	alice := createUser(t, ts.URL, "alice")

	response := doJSON(t, http.MethodPost, ts.URL+"/api/posts", map[string]string{
		"username": "alice", "name": "Alice", "text": "first post",
	})
	req.Equal(http.StatusCreated, response.StatusCode)
	post := decode[map[string]any](t, response)
	postURL := fmt.Sprintf("%s/api/posts/%s", ts.URL, post["id"])

	response = doJSON(t, http.MethodPatch, postURL+"/like",
		map[string]string{"userId": alice["id"].(string)})
	req.Equal(http.StatusOK, response.StatusCode)
	req.Len(decode[map[string]any](t, response)["likes"], 1)

	// Second like toggles back off.
	response = doJSON(t, http.MethodPatch, postURL+"/like",
		map[string]string{"userId": alice["id"].(string)})
	req.Equal(http.StatusOK, response.StatusCode)
	req.Empty(decode[map[string]any](t, response)["likes"])

	response = doJSON(t, http.MethodPost, postURL+"/comments", map[string]string{
		"username": "alice", "name": "Alice", "text": "replying to myself",
	})
	req.Equal(http.StatusCreated, response.StatusCode)
	comment := decode[map[string]any](t, response)

	response = doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/comments/%s", postURL, comment["id"]), nil)
	req.Equal(http.StatusNoContent, response.StatusCode)

	response = doJSON(t, http.MethodDelete, postURL, nil)
	req.Equal(http.StatusNoContent, response.StatusCode)
	response = doJSON(t, http.MethodDelete, postURL, nil)
	req.Equal(http.StatusNotFound, response.StatusCode)
}

func Test_Verify_User_Grants_The_Badge(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	createUser(t, ts.URL, "alice")

	response := doJSON(t, http.MethodPatch, ts.URL+"/api/users/verify/ghost", nil)
	req.Equal(http.StatusNotFound, response.StatusCode)

	response = doJSON(t, http.MethodPatch, ts.URL+"/api/users/verify/alice", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	req.Equal("User verified successfully.", decode[map[string]any](t, response)["message"])

	// The badge reaches the chat: messages alice publishes now carry the
	// verified snapshot.
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	req.NoError(err)
	defer conn.Close()
	wsFrame(t, conn) // join
	wsFrame(t, conn) // presence

	req.NoError(conn.WriteJSON(map[string]string{
		"type": "publish", "author": "alice", "body": "now with badge",
	}))
	relay := wsFrame(t, conn)
	req.Equal("relay", relay["type"])
	req.Equal(true, relay["message"].(map[string]any)["verified"])
}

func Test_Comment_Like_Round_Trip(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	alice := createUser(t, ts.URL, "alice")

	response := doJSON(t, http.MethodPost, ts.URL+"/api/posts", map[string]string{
		"username": "alice", "name": "Alice", "text": "like my comment",
	})
	req.Equal(http.StatusCreated, response.StatusCode)
	post := decode[map[string]any](t, response)

	commentsURL := fmt.Sprintf("%s/api/posts/%s/comments", ts.URL, post["id"])
	response = doJSON(t, http.MethodPost, commentsURL, map[string]string{
		"username": "alice", "name": "Alice", "text": "self comment",
	})
	req.Equal(http.StatusCreated, response.StatusCode)
	comment := decode[map[string]any](t, response)

	likeURL := fmt.Sprintf("%s/%s/like", commentsURL, comment["id"])
	response = doJSON(t, http.MethodPatch, likeURL, map[string]string{"userId": alice["id"].(string)})
	req.Equal(http.StatusOK, response.StatusCode)
	req.Len(decode[map[string]any](t, response)["likes"], 1)

	response = doJSON(t, http.MethodPatch, likeURL, map[string]string{"userId": alice["id"].(string)})
	req.Equal(http.StatusOK, response.StatusCode)
	req.Empty(decode[map[string]any](t, response)["likes"])

	missingURL := fmt.Sprintf("%s/%s/like", commentsURL, "0c2decc5-02e1-4762-bd1e-ae4fd7c86286")
	response = doJSON(t, http.MethodPatch, missingURL, map[string]string{"userId": alice["id"].(string)})
	req.Equal(http.StatusNotFound, response.StatusCode)
}

func Test_Contributor_Leaderboards(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	createUser(t, ts.URL, "alice")
	createUser(t, ts.URL, "bob")

	createPost := func(username string) map[string]any {
		response := doJSON(t, http.MethodPost, ts.URL+"/api/posts", map[string]string{
			"username": username, "name": username, "text": "a post",
		})
		require.Equal(t, http.StatusCreated, response.StatusCode)
		return decode[map[string]any](t, response)
	}

	createPost("alice")
	post := createPost("alice")
	createPost("bob")
	for i := 0; i < 2; i++ {
		response := doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/posts/%s/comments", ts.URL, post["id"]),
			map[string]string{"username": "bob", "name": "Bob", "text": "a comment"})
		req.Equal(http.StatusCreated, response.StatusCode)
	}
	// An author without a user record never reaches a leaderboard.
	createPost("ghost")

	response := doJSON(t, http.MethodGet, ts.URL+"/api/users/most-posts", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	posters := decode[[]map[string]any](t, response)
	req.Len(posters, 2)
	req.Equal("alice", posters[0]["username"])
	req.EqualValues(2, posters[0]["postCount"])
	req.Equal("bob", posters[1]["username"])

	// Comments count toward contributions, so bob overtakes alice.
	response = doJSON(t, http.MethodGet, ts.URL+"/api/users/most-contributions", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	contributors := decode[[]map[string]any](t, response)
	req.Len(contributors, 2)
	req.Equal("bob", contributors[0]["username"])
	req.EqualValues(3, contributors[0]["total"])
	req.EqualValues(2, contributors[0]["commentCount"])
	req.Equal("alice", contributors[1]["username"])
}

func Test_Report_Requires_All_Fields(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	response := doJSON(t, http.MethodPost, ts.URL+"/api/reports", map[string]string{
		"type": "bug", "message": "it broke",
	})
	req.Equal(http.StatusBadRequest, response.StatusCode)

	response = doJSON(t, http.MethodPost, ts.URL+"/api/reports", map[string]string{
		"type": "bug", "message": "it broke", "name": "Alice",
		"username": "alice", "email": "alice@example.com",
	})
	req.Equal(http.StatusCreated, response.StatusCode)

	response = doJSON(t, http.MethodGet, ts.URL+"/api/reports", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	req.Len(decode[[]map[string]any](t, response), 1)
}

func Test_Debug_Stats_Serves_Counters(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	response := doJSON(t, http.MethodGet, ts.URL+"/debug/stats", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	stats := decode[map[string]any](t, response)
	req.Contains(stats, "online")
	req.Contains(stats, "relayed_messages")
}

func wsFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func Test_WebSocket_Join_Publish_Relay(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	createUser(t, ts.URL, "alice")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	req.NoError(err)
	defer conn.Close()

	join := wsFrame(t, conn)
	req.Equal("join", join["type"])
	req.Empty(join["messages"])

	presence := wsFrame(t, conn)
	req.Equal("presence", presence["type"])
	req.EqualValues(1, presence["online"])

	req.NoError(conn.WriteJSON(map[string]string{
		"type": "publish", "author": "alice", "body": "hello room",
	}))
	relay := wsFrame(t, conn)
	req.Equal("relay", relay["type"])
	message := relay["message"].(map[string]any)
	req.Equal("hello room", message["body"])
	req.Equal("alice", message["author"])

	// Invalid publish comes back as an error frame to this connection only.
	req.NoError(conn.WriteJSON(map[string]string{
		"type": "publish", "author": "alice", "body": "",
	}))
	rejected := wsFrame(t, conn)
	req.Equal("error", rejected["type"])
}
