// Package auth orchestrates login, registration and logout, and owns the
// session teardown path shared with the request client's 401 handling.
package auth

import (
	"context"

	"connecto/api"
	"connecto/models"
	"connecto/payload"
	"connecto/session"
)

// Controller drives the session lifecycle. It and the request client's
// teardown hook are the only writers of the session store, and both converge
// on the same idempotent Clear.
type Controller struct {
	api      *api.Client
	store    session.Store
	onLogout func()
}

// NewController builds the controller and registers its logout path as the
// client's teardown hook, so any 401 response tears the session down exactly
// like an explicit logout.
func NewController(client *api.Client, store session.Store) *Controller {
	c := &Controller{api: client, store: store}
	client.SetUnauthorizedHandler(func() {
		_ = c.Logout(context.Background())
	})
	return c
}

// SetLogoutHook registers a callback run after every teardown, explicit or
// 401-triggered. The caller uses it to return control flow to the anonymous
// entry point.
func (c *Controller) SetLogoutHook(fn func()) {
	c.onLogout = fn
}

// Login authenticates with the API and stores the returned token and user.
// Blank fields fail validation locally without a network call. Server-reported
// credential errors are surfaced verbatim.
func (c *Controller) Login(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, models.NewValidationError("Please fill in all fields")
	}

	body, err := payload.JSON(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	if err := c.api.Post(ctx, "/auth/login", body, &resp); err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, resp.Token, &resp.User); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Register creates an account and returns the server's confirmation message.
// Registration does not authenticate; the caller must log in explicitly
// afterwards. The avatar, when present, rides in a multipart body.
func (c *Controller) Register(ctx context.Context, username, email, password string, avatar []byte, avatarName string) (string, error) {
	if username == "" || email == "" || password == "" {
		return "", models.NewValidationError("Username, email, and password are required")
	}

	body, err := payload.EncodeRegistration(username, email, password, avatar, avatarName)
	if err != nil {
		return "", err
	}

	var resp struct {
		Message string `json:"message"`
	}
	if err := c.api.Post(ctx, "/auth/register", body, &resp); err != nil {
		return "", err
	}
	if resp.Message == "" {
		resp.Message = "Account created successfully!"
	}
	return resp.Message, nil
}

// Logout clears the session unconditionally and runs the logout hook. Safe to
// call when already logged out.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.store.Clear(ctx)
	if c.onLogout != nil {
		c.onLogout()
	}
	return err
}

// CurrentUser fetches the authenticated profile with its posts and lazily
// refreshes the cached user in the session store.
func (c *Controller) CurrentUser(ctx context.Context) (*models.User, []models.Post, error) {
	var resp struct {
		User  models.User   `json:"user"`
		Posts []models.Post `json:"posts"`
	}
	if err := c.api.Get(ctx, "/users/me", &resp); err != nil {
		return nil, nil, err
	}

	sess, err := c.store.Get(ctx)
	if err == nil && sess.Token != "" {
		_ = c.store.Set(ctx, sess.Token, &resp.User)
	}
	return &resp.User, resp.Posts, nil
}
