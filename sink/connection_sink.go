// Package sink bridges the hub's fanout to individual transports.
package sink

import (
	"context"
	"log/slog"

	"trenchsocial/domain/event"
)

// ConnectionSink buffers hub events for one WebSocket connection. The write
// pump drains Events and turns them into wire frames.
type ConnectionSink struct {
	log    *slog.Logger
	Events chan event.Event
}

func NewConnectionSink(log *slog.Logger, bufferSize int) *ConnectionSink {
	return &ConnectionSink{log: log, Events: make(chan event.Event, bufferSize)}
}

// Consume is called by the hub's relay loop. It never blocks: when the
// buffer is full the event is dropped and counted as backpressure, because a
// stalled client must not delay delivery to every other connection.
func (s *ConnectionSink) Consume(ctx context.Context, e event.Event) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Warn("Connection buffer full, dropping event", "kind", e.Kind())
		return nil
	}
}
