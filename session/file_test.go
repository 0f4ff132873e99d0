package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connecto/models"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	user := &models.User{ID: "u1", Username: "alice", Email: "a@b.com"}
	require.NoError(t, store.Set(ctx, "t1", user))

	sess, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
	assert.Equal(t, "t1", sess.Token)
	require.NotNil(t, sess.User)
	assert.Equal(t, "alice", sess.User.Username)
}

func TestFileStoreEmptyByDefault(t *testing.T) {
	sess, err := newFileStore(t).Get(context.Background())
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.Nil(t, sess.User)
}

func TestFileStoreTokenWithoutUser(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	require.NoError(t, store.Set(ctx, "t1", nil))

	sess, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
	assert.Nil(t, sess.User)
}

func TestFileStoreClearIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	require.NoError(t, store.Set(ctx, "t1", &models.User{ID: "u1"}))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	sess, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Session{}, sess)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "t1", &models.User{ID: "u1", Username: "alice"}))
	require.NoError(t, first.Close())

	second, err := NewFileStore(path)
	require.NoError(t, err)
	defer second.Close()

	sess, err := second.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", sess.Token)
	require.NotNil(t, sess.User)
	assert.Equal(t, "alice", sess.User.Username)
}

func TestFileStoreCorruptedRecordIsNoSession(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	require.NoError(t, store.Set(ctx, "t1", &models.User{ID: "u1"}))

	err := store.db.Model(&sessionRecord{}).
		Where("id = ?", recordID).
		Update("user_json", []byte("{not json")).Error
	require.NoError(t, err)

	sess, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Session{}, sess)
}
