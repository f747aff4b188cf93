package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trenchsocial/contract"
	"trenchsocial/domain"
	"trenchsocial/domain/event"
	apperrors "trenchsocial/errors"
	"trenchsocial/observability"
	"trenchsocial/repositories"
)

// Connection is one open client connection. Its lifecycle is
// Connecting → Open → Closed; a reconnect creates a fresh Connection.
type Connection struct {
	ID   string
	sink contract.EventSink
}

func NewConnection(sink contract.EventSink) *Connection {
	return &Connection{ID: uuid.NewString(), sink: sink}
}

type publishRequest struct {
	conn   *Connection
	author string
	body   string
}

// BroadcastHub owns the shared chat room. All joins, leaves and publishes
// funnel through its channels into a single goroutine, so the order messages
// are durably appended is exactly the order every connection observes them,
// even though authors publish concurrently from independent connections.
//
// Persistence on the publish path is best-effort: a message whose append
// fails is still relayed live, it is simply absent from backlog for future
// joiners.
type BroadcastHub struct {
	log           *slog.Logger
	chat          repositories.IChatRepository
	users         contract.UserLookup
	presence      *PresenceTracker
	stats         *observability.HubStats
	backlogLimit  int
	maxBodyLength int

	joins     chan *Connection
	leaves    chan *Connection
	publishes chan publishRequest
	conns     map[*Connection]struct{}

	mu   sync.Mutex
	done chan struct{}
}

func NewBroadcastHub(
	log *slog.Logger,
	chat repositories.IChatRepository,
	users contract.UserLookup,
	presence *PresenceTracker,
	stats *observability.HubStats,
	backlogLimit, maxBodyLength, bufferSize int,
) *BroadcastHub {
	return &BroadcastHub{
		log:           log,
		chat:          chat,
		users:         users,
		presence:      presence,
		stats:         stats,
		backlogLimit:  backlogLimit,
		maxBodyLength: maxBodyLength,
		joins:         make(chan *Connection),
		leaves:        make(chan *Connection, bufferSize),
		publishes:     make(chan publishRequest, bufferSize),
		conns:         make(map[*Connection]struct{}),
		done:          make(chan struct{}),
	}
}

// Join hands a freshly opened connection to the hub. It returns ErrHubClosed
// once the hub has stopped, so transports can abort the handshake.
func (h *BroadcastHub) Join(conn *Connection) error {
	select {
	case h.joins <- conn:
		return nil
	case <-h.stopped():
		return apperrors.ErrHubClosed
	}
}

// Leave marks the connection Closed. Safe to call for a connection the hub
// never registered or has already dropped.
func (h *BroadcastHub) Leave(conn *Connection) {
	select {
	case h.leaves <- conn:
	case <-h.stopped():
	}
}

// Publish queues an inbound message. The queue preserves arrival order; when
// it is full the publish is dropped and logged rather than allowed to block
// the caller's read loop.
func (h *BroadcastHub) Publish(conn *Connection, author, body string) {
	select {
	case h.publishes <- publishRequest{conn: conn, author: author, body: body}:
	case <-h.stopped():
	default:
		h.stats.DroppedPublishes.Add(1)
		h.log.Warn("Publish queue full, dropping message", "author", author)
	}
}

// stopped returns the done channel of the current Run invocation, closed
// once that invocation exits.
func (h *BroadcastHub) stopped() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// Run is the single-writer loop. It must be the only goroutine touching
// h.conns. Each invocation installs a fresh done channel, so a supervised
// restart after a panic accepts joins again instead of refusing them through
// the previous invocation's closed channel.
func (h *BroadcastHub) Run(ctx context.Context) error {
	h.mu.Lock()
	done := make(chan struct{})
	h.done = done
	h.mu.Unlock()
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("Stopping broadcast hub")
			return ctx.Err()
		case conn := <-h.joins:
			h.handleJoin(ctx, conn)
		case conn := <-h.leaves:
			h.handleLeave(ctx, conn)
		case request := <-h.publishes:
			h.handlePublish(ctx, request)
		}
	}
}

func (h *BroadcastHub) handleJoin(ctx context.Context, conn *Connection) {
	h.conns[conn] = struct{}{}
	online := h.presence.Increment()
	h.stats.SetOnline(online)

	backlog, err := h.chat.RecentChat(h.backlogLimit)
	if err != nil {
		// Best-effort: the joiner starts with an empty history rather than
		// being refused.
		h.log.Warn("Backlog fetch failed", "error", err)
		backlog = nil
	}
	h.deliver(ctx, conn, event.BacklogLoaded{Messages: backlog})
	h.broadcast(ctx, event.PresenceUpdated{Online: online})
	h.log.Info("Connection opened", "connection_id", conn.ID, "online", online)
}

func (h *BroadcastHub) handleLeave(ctx context.Context, conn *Connection) {
	if _, ok := h.conns[conn]; !ok {
		return
	}
	delete(h.conns, conn)
	online := h.presence.Decrement()
	h.stats.SetOnline(online)
	h.broadcast(ctx, event.PresenceUpdated{Online: online})
	h.log.Info("Connection closed", "connection_id", conn.ID, "online", online)
}

func (h *BroadcastHub) handlePublish(ctx context.Context, request publishRequest) {
	// A connection that closed while its publish sat in the queue is gone
	// from conns: the message is dropped entirely, never half-relayed.
	if _, ok := h.conns[request.conn]; !ok {
		h.log.Debug("Publish from closed connection dropped", "connection_id", request.conn.ID)
		return
	}
	if reason := h.validate(request); reason != "" {
		h.stats.RejectedPublishes.Add(1)
		h.deliver(ctx, request.conn, event.PublishRejected{Reason: reason})
		return
	}

	message := domain.ChatMessage{
		ID:          uuid.New(),
		Author:      request.author,
		Verified:    h.verifiedAtSend(request.author),
		Body:        request.body,
		PublishedAt: time.Now().UTC(),
	}
	if _, err := h.chat.AppendChat(message); err != nil {
		// The relay still goes out; the message will simply be missing from
		// backlog for future joiners.
		h.log.Warn("Chat append failed, relaying anyway", "error", err)
	}
	h.broadcast(ctx, event.MessageRelayed{Message: message})
	h.stats.RelayedMessages.Add(1)
}

func (h *BroadcastHub) validate(request publishRequest) string {
	switch {
	case request.author == "":
		return "author is required"
	case request.body == "":
		return "body is required"
	case h.maxBodyLength > 0 && len(request.body) > h.maxBodyLength:
		return fmt.Sprintf("body exceeds %d bytes", h.maxBodyLength)
	}
	return ""
}

// verifiedAtSend snapshots the author's current verification flag. An
// unknown author publishes as unverified instead of being refused.
func (h *BroadcastHub) verifiedAtSend(author string) bool {
	verified, err := h.users.VerifiedStatus(author)
	if err != nil {
		h.log.Debug("Verification lookup failed", "author", author, "error", err)
		return false
	}
	return verified
}

func (h *BroadcastHub) broadcast(ctx context.Context, e event.Event) {
	for conn := range h.conns {
		h.deliver(ctx, conn, e)
	}
}

func (h *BroadcastHub) deliver(ctx context.Context, conn *Connection, e event.Event) {
	if err := conn.sink.Consume(ctx, e); err != nil {
		h.log.Warn("Event delivery failed", "connection_id", conn.ID, "kind", e.Kind(), "error", err)
	}
}
