// Package feed owns the in-memory post list and reconciles it with the server
// by refetching after every successful mutation instead of patching locally.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"connecto/api"
	"connecto/models"
	"connecto/payload"
	"connecto/session"
)

// ErrDeclined is returned by Remove when the confirmation step does not
// approve the deletion. No network call has been made.
var ErrDeclined = errors.New("deletion not confirmed")

// ConfirmFunc asks for explicit approval before a post is deleted.
type ConfirmFunc func(post models.Post) bool

// Synchronizer is the sole owner of the local feed. Every successful mutation
// is followed by a full refetch, so the feed never diverges from the server's
// view for more than one round trip.
type Synchronizer struct {
	api     *api.Client
	confirm ConfirmFunc

	mu      sync.Mutex
	posts   []models.Post
	editing map[string]bool
	gen     uint64
}

// NewSynchronizer builds a synchronizer issuing calls through client. confirm
// guards Remove; a nil confirm means deletions are never approved.
func NewSynchronizer(client *api.Client, confirm ConfirmFunc) *Synchronizer {
	return &Synchronizer{
		api:     client,
		confirm: confirm,
		editing: make(map[string]bool),
	}
}

// Posts returns a copy of the current feed in server order.
func (s *Synchronizer) Posts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// Refresh replaces the entire feed with the server's response. On failure the
// feed is left unchanged. Responses that arrive after a newer refresh or a
// Reset are dropped rather than applied over fresher state.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	var raw json.RawMessage
	if err := s.api.Get(ctx, "/posts", &raw); err != nil {
		return err
	}
	posts, err := decodeFeed(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.posts = posts
	return nil
}

// decodeFeed normalizes the two response shapes the API serves: a bare post
// array and a {"posts": [...]} envelope. The shape is resolved once here so
// the rest of the synchronizer only sees one form.
func decodeFeed(raw []byte) ([]models.Post, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var posts []models.Post
		if err := json.Unmarshal(trimmed, &posts); err != nil {
			return nil, fmt.Errorf("decode feed: %w", err)
		}
		return posts, nil
	}
	var envelope struct {
		Posts []models.Post `json:"posts"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode feed envelope: %w", err)
	}
	return envelope.Posts, nil
}

// Create validates, encodes and submits a pending post, then refetches. On
// failure nothing is mutated, so the caller can retry with the same pending
// data intact.
func (s *Synchronizer) Create(ctx context.Context, pending models.PendingPost) error {
	body, err := payload.EncodePost(pending)
	if err != nil {
		return err
	}
	// The created post in the response is ignored; the refetch is authoritative.
	if err := s.api.Post(ctx, "/posts", body, nil); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// StartEdit marks a post as being edited.
func (s *Synchronizer) StartEdit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing[id] = true
}

// CancelEdit abandons an in-progress edit without contacting the server.
func (s *Synchronizer) CancelEdit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.editing, id)
}

// Editing reports whether the post is currently being edited.
func (s *Synchronizer) Editing(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing[id]
}

// Update submits a new caption for the post. Only on success does the post
// leave editing state; on failure the in-progress edit is preserved.
func (s *Synchronizer) Update(ctx context.Context, id, caption string) error {
	body, err := payload.EncodeCaption(caption)
	if err != nil {
		return err
	}
	if err := s.api.Put(ctx, "/posts/"+id, body, nil); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.editing, id)
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// Remove deletes a post after the confirmation step approves it. The post is
// never removed locally before the server confirms; a declined confirmation
// performs no network call and returns ErrDeclined.
func (s *Synchronizer) Remove(ctx context.Context, id string) error {
	post, ok := s.lookup(id)
	if !ok {
		return models.NewValidationError("unknown post " + id)
	}
	if s.confirm == nil || !s.confirm(post) {
		return ErrDeclined
	}
	if err := s.api.Delete(ctx, "/posts/"+id); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Reset drops the local feed and any editing state, e.g. on logout. It also
// invalidates in-flight refreshes so their late responses are discarded.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.posts = nil
	s.editing = make(map[string]bool)
}

func (s *Synchronizer) lookup(id string) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.ID == id {
			return p, true
		}
	}
	return models.Post{}, false
}

// IsOwner reports whether the cached session user authored the post. This is a
// display hint only; the server re-verifies ownership on every mutation.
func IsOwner(sess session.Session, post models.Post) bool {
	return sess.User != nil && sess.User.ID != "" && sess.User.ID == post.User.ID
}
