package domain

import (
	"time"

	"github.com/google/uuid"
)

// Post is a timeline entry. Likes and Retruths hold user ids and behave as
// sets: liking twice is a no-op, unliking removes the entry.
type Post struct {
	ID        uuid.UUID `json:"id"`
	Author    string    `json:"username"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	ImageURL  string    `json:"imageURL,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Likes     []string  `json:"likes"`
	Retruths  []string  `json:"retruths"`
	Comments  []Comment `json:"comments"`
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	Author    string    `json:"username"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Likes     []string  `json:"likes"`
}
