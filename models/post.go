package models

import (
	"strings"
	"time"
)

// Post is a single feed entry. The embedded User is an author stub with at
// least id, username and avatar populated.
type Post struct {
	ID        string    `json:"_id"`
	Caption   string    `json:"caption"`
	Image     string    `json:"image,omitempty"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// PendingPost is the not-yet-submitted content of a create action. It is never
// persisted and is discarded once submission succeeds or the user cancels.
type PendingPost struct {
	Caption   string
	Image     []byte
	ImageName string
}

// Valid reports whether the pending post satisfies the submission invariant:
// a non-empty caption or an attached image. The server enforces the same rule
// independently.
func (p PendingPost) Valid() bool {
	return strings.TrimSpace(p.Caption) != "" || len(p.Image) > 0
}
