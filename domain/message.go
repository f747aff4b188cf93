// Package domain contains core concepts of the social network.
// This file defines the two message kinds handled by the backend.
// Messages are immutable once created.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a broadcast message in the shared room.
// Author and Verified are snapshots taken at publish time, not live
// references to the user record.
type ChatMessage struct {
	ID          uuid.UUID `json:"id"`
	Author      string    `json:"author"`
	Verified    bool      `json:"verified"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"publishedAt"`
}

// PrivateMessage is a direct message between two users. Self-messaging is
// permitted; the pair {SenderID, ReceiverID} is treated as unordered when
// grouping into conversations.
type PrivateMessage struct {
	ID         uuid.UUID `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"content"`
	SentAt     time.Time `json:"sentAt"`
}
