// Package event defines the events the broadcast hub pushes to connected
// clients. Events are translated into wire frames at the transport edge.
package event

import "trenchsocial/domain"

type Event interface {
	Kind() string
}

// BacklogLoaded carries the bounded recent history delivered to a newly
// joined connection only, oldest first.
type BacklogLoaded struct {
	Messages []domain.ChatMessage
}

func (BacklogLoaded) Kind() string { return "join" }

// PresenceUpdated is broadcast to every open connection whenever the live
// connection count changes.
type PresenceUpdated struct {
	Online int
}

func (PresenceUpdated) Kind() string { return "presence" }

// MessageRelayed is broadcast to every open connection in global publish
// order.
type MessageRelayed struct {
	Message domain.ChatMessage
}

func (MessageRelayed) Kind() string { return "relay" }

// PublishRejected is delivered only to the connection whose publish failed
// validation. The message is dropped, not relayed.
type PublishRejected struct {
	Reason string
}

func (PublishRejected) Kind() string { return "error" }
