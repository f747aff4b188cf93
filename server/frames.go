package server

import (
	"time"

	"trenchsocial/domain"
	"trenchsocial/domain/event"
)

// Wire frames for the chat socket. Every frame carries a type discriminator
// so browser clients can switch on it.
const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxInboundBytes = 4096
)

// inboundFrame is the only client-to-server frame: a chat publish.
type inboundFrame struct {
	Type   string `json:"type"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

type backlogFrame struct {
	Type     string               `json:"type"`
	Messages []domain.ChatMessage `json:"messages"`
}

type presenceFrame struct {
	Type   string `json:"type"`
	Online int    `json:"online"`
}

type relayFrame struct {
	Type    string             `json:"type"`
	Message domain.ChatMessage `json:"message"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// toFrame converts a hub event into its outbound wire shape.
func toFrame(e event.Event) any {
	switch typed := e.(type) {
	case event.BacklogLoaded:
		messages := typed.Messages
		if messages == nil {
			messages = []domain.ChatMessage{}
		}
		return backlogFrame{Type: typed.Kind(), Messages: messages}
	case event.PresenceUpdated:
		return presenceFrame{Type: typed.Kind(), Online: typed.Online}
	case event.MessageRelayed:
		return relayFrame{Type: typed.Kind(), Message: typed.Message}
	case event.PublishRejected:
		return errorFrame{Type: typed.Kind(), Message: typed.Reason}
	default:
		return nil
	}
}
