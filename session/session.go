// Package session persists the client's authenticated identity across process
// restarts and hands it to the request client on every call.
package session

import (
	"context"

	"connecto/models"
)

// Session is the client's belief about its current identity. A present token
// means the client considers itself authenticated; User is a best-effort cache
// and may be stale or nil even when Token is set.
type Session struct {
	Token string
	User  *models.User
}

// Authenticated reports whether a token is present.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Store is durable storage for the session. Implementations perform no
// network calls against the Connecto API. Clear is idempotent and safe to
// call on an already-empty store; both the explicit logout path and the
// 401-triggered teardown converge on it.
type Store interface {
	Get(ctx context.Context) (Session, error)
	Set(ctx context.Context, token string, user *models.User) error
	Clear(ctx context.Context) error
}
