package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connecto/api"
	"connecto/models"
	"connecto/session"
)

const (
	bareFeed = `[
		{"_id":"p2","caption":"second","user":{"_id":"u1","username":"alice"},"createdAt":"2026-08-02T10:00:00Z"},
		{"_id":"p1","caption":"first","user":{"_id":"u2","username":"bob"},"createdAt":"2026-08-01T10:00:00Z"}
	]`
	envelopedFeed = `{"posts":[
		{"_id":"p2","caption":"second","user":{"_id":"u1","username":"alice"},"createdAt":"2026-08-02T10:00:00Z"},
		{"_id":"p1","caption":"first","user":{"_id":"u2","username":"bob"},"createdAt":"2026-08-01T10:00:00Z"}
	]}`
)

// fakeAPI scripts the post collection endpoint and counts traffic per verb.
type fakeAPI struct {
	mu         sync.Mutex
	feedBody   string
	feedStatus int
	mutStatus  int

	gets, posts, puts, deletes int

	lastCaption  string
	lastHadImage bool

	gateGets bool
	gate     chan struct{}
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		switch r.Method {
		case http.MethodGet:
			f.gets++
			status := f.feedStatus
			body := f.feedBody
			gated := f.gateGets
			gate := f.gate
			f.mu.Unlock()
			if gated {
				<-gate
			}
			if status == 0 {
				status = http.StatusOK
			}
			w.WriteHeader(status)
			if status == http.StatusOK {
				w.Write([]byte(body))
			} else {
				w.Write([]byte(`{"message":"feed unavailable"}`))
			}
			return
		case http.MethodPost:
			f.posts++
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				f.lastCaption = r.FormValue("caption")
				_, _, ferr := r.FormFile("image")
				f.lastHadImage = ferr == nil
			}
		case http.MethodPut:
			f.puts++
		case http.MethodDelete:
			f.deletes++
		}
		status := f.mutStatus
		f.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if status >= 400 {
			w.Write([]byte(`{"message":"mutation rejected"}`))
		}
	})
}

func (f *fakeAPI) counts() (gets, posts, puts, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, f.posts, f.puts, f.deletes
}

func newSync(t *testing.T, fake *fakeAPI, confirm ConfirmFunc) *Synchronizer {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	store, err := session.NewFileStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewSynchronizer(api.New(srv.URL, store), confirm)
}

func TestRefreshNormalizesBothResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", bareFeed},
		{"enveloped object", envelopedFeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSync(t, &fakeAPI{feedBody: tt.body}, nil)
			require.NoError(t, s.Refresh(context.Background()))

			posts := s.Posts()
			require.Len(t, posts, 2)
			assert.Equal(t, "p2", posts[0].ID)
			assert.Equal(t, "alice", posts[0].User.Username)
			assert.Equal(t, "p1", posts[1].ID)
		})
	}
}

func TestRefreshFailureLeavesFeedUnchanged(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{feedBody: bareFeed}
	s := newSync(t, fake, nil)

	require.NoError(t, s.Refresh(ctx))
	require.Len(t, s.Posts(), 2)

	fake.mu.Lock()
	fake.feedStatus = http.StatusInternalServerError
	fake.mu.Unlock()

	err := s.Refresh(ctx)
	require.Error(t, err)
	assert.Len(t, s.Posts(), 2)
}

func TestCreateSubmitsMultipartThenRefetchesOnce(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{feedBody: bareFeed, mutStatus: http.StatusCreated}
	s := newSync(t, fake, nil)

	pending := models.PendingPost{
		Caption: "hi",
		Image:   []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a},
	}
	require.NoError(t, s.Create(ctx, pending))

	gets, posts, _, _ := fake.counts()
	assert.Equal(t, 1, posts)
	assert.Equal(t, 1, gets, "exactly one follow-up fetch")
	assert.Equal(t, "hi", fake.lastCaption)
	assert.True(t, fake.lastHadImage)
	assert.Len(t, s.Posts(), 2)
}

func TestCreateInvalidSubmissionMakesNoNetworkCall(t *testing.T) {
	fake := &fakeAPI{feedBody: bareFeed}
	s := newSync(t, fake, nil)

	err := s.Create(context.Background(), models.PendingPost{Caption: "  "})
	assert.True(t, models.IsValidation(err))

	gets, posts, _, _ := fake.counts()
	assert.Zero(t, gets)
	assert.Zero(t, posts)
}

func TestCreateFailureMutatesNothing(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{feedBody: bareFeed, mutStatus: http.StatusBadRequest}
	s := newSync(t, fake, nil)

	err := s.Create(ctx, models.PendingPost{Caption: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutation rejected")

	gets, _, _, _ := fake.counts()
	assert.Zero(t, gets, "no refetch after a failed create")
	assert.Empty(t, s.Posts())
}

func TestUpdateExitsEditingOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{feedBody: bareFeed, mutStatus: http.StatusInternalServerError}
	s := newSync(t, fake, nil)

	s.StartEdit("p1")
	require.True(t, s.Editing("p1"))

	// failure: the in-progress edit is preserved
	require.Error(t, s.Update(ctx, "p1", "new caption"))
	assert.True(t, s.Editing("p1"))
	gets, _, _, _ := fake.counts()
	assert.Zero(t, gets)

	// success: editing state cleared and feed refetched
	fake.mu.Lock()
	fake.mutStatus = http.StatusOK
	fake.mu.Unlock()

	require.NoError(t, s.Update(ctx, "p1", "new caption"))
	assert.False(t, s.Editing("p1"))
	gets, _, puts, _ := fake.counts()
	assert.Equal(t, 1, gets)
	assert.Equal(t, 2, puts)
}

func TestCancelEditMakesNoNetworkCall(t *testing.T) {
	fake := &fakeAPI{feedBody: bareFeed}
	s := newSync(t, fake, nil)

	s.StartEdit("p1")
	s.CancelEdit("p1")
	assert.False(t, s.Editing("p1"))

	gets, _, puts, _ := fake.counts()
	assert.Zero(t, gets)
	assert.Zero(t, puts)
}

func TestRemoveRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{feedBody: bareFeed}

	declined := 0
	s := newSync(t, fake, func(post models.Post) bool {
		declined++
		assert.Equal(t, "p1", post.ID)
		return false
	})
	require.NoError(t, s.Refresh(ctx))

	err := s.Remove(ctx, "p1")
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, 1, declined)

	_, _, _, deletes := fake.counts()
	assert.Zero(t, deletes)
	assert.Len(t, s.Posts(), 2, "no optimistic local removal")
}

func TestRemoveWithoutConfirmFuncNeverCalls(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{feedBody: bareFeed}
	s := newSync(t, fake, nil)
	require.NoError(t, s.Refresh(ctx))

	assert.ErrorIs(t, s.Remove(ctx, "p1"), ErrDeclined)
	_, _, _, deletes := fake.counts()
	assert.Zero(t, deletes)
}

func TestRemoveConfirmedDeletesAndRefetches(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{feedBody: bareFeed}
	s := newSync(t, fake, func(models.Post) bool { return true })
	require.NoError(t, s.Refresh(ctx))

	require.NoError(t, s.Remove(ctx, "p2"))

	gets, _, _, deletes := fake.counts()
	assert.Equal(t, 1, deletes)
	assert.Equal(t, 2, gets, "initial fetch plus one reconciliation fetch")
}

func TestRemoveUnknownPost(t *testing.T) {
	fake := &fakeAPI{feedBody: bareFeed}
	s := newSync(t, fake, func(models.Post) bool { return true })

	err := s.Remove(context.Background(), "missing")
	assert.True(t, models.IsValidation(err))
	_, _, _, deletes := fake.counts()
	assert.Zero(t, deletes)
}

func TestLateRefreshResponseIsDiscardedAfterReset(t *testing.T) {
	fake := &fakeAPI{feedBody: bareFeed, gateGets: true, gate: make(chan struct{})}
	s := newSync(t, fake, nil)

	done := make(chan error, 1)
	go func() {
		done <- s.Refresh(context.Background())
	}()
	require.Eventually(t, func() bool {
		gets, _, _, _ := fake.counts()
		return gets == 1
	}, time.Second, 5*time.Millisecond)

	// reset while the fetch is still in flight, then let the response land
	s.Reset()
	close(fake.gate)
	require.NoError(t, <-done)

	assert.Empty(t, s.Posts(), "stale response must not repopulate the feed")
}

func TestIsOwner(t *testing.T) {
	alice := &models.User{ID: "u1", Username: "alice"}
	post := models.Post{ID: "p1", User: models.User{ID: "u1", Username: "alice"}}
	other := models.Post{ID: "p2", User: models.User{ID: "u2", Username: "bob"}}

	assert.True(t, IsOwner(session.Session{Token: "t", User: alice}, post))
	assert.False(t, IsOwner(session.Session{Token: "t", User: alice}, other))
	assert.False(t, IsOwner(session.Session{Token: "t"}, post))
	assert.False(t, IsOwner(session.Session{User: &models.User{}}, models.Post{}))
}
