package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/objectstore"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubModerator struct{ allowed bool }

func (m stubModerator) Allowed(context.Context, string) (bool, error) { return m.allowed, nil }

func newAvatarFixture(t *testing.T, moderator objectstore.Moderator) (*fixture, *AvatarService, string) {
	t.Helper()
	f := newFixture(t)
	f.addUser(t, "a", "Alice")
	dir := t.TempDir()
	store, err := objectstore.NewLocalStore(dir, "http://localhost:8080")
	require.NoError(t, err)
	return f, NewAvatarService(store, moderator, f.profiles, zap.NewNop()), dir
}

func TestAvatarUploadReplacesPrevious(t *testing.T) {
	f, svc, dir := newAvatarFixture(t, nil)

	first, err := svc.Upload(f.ctx, "a", "image/png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.NotNil(t, first.Profile.Avatar)
	assert.Equal(t, first.URL, *first.Profile.Avatar)
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(first.Key)))

	second, err := svc.Upload(f.ctx, "a", "image/png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.NotEqual(t, first.Key, second.Key)
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(second.Key)))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(first.Key)))
	assert.True(t, os.IsNotExist(err))

	prof, err := svc.Remove(f.ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, prof.Avatar)
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(second.Key)))
	assert.True(t, os.IsNotExist(err))
}

func TestAvatarUploadRejectsBadInput(t *testing.T) {
	f, svc, _ := newAvatarFixture(t, nil)

	_, err := svc.Upload(f.ctx, "a", "image/gif", bytes.NewReader([]byte("GIF89a")))
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = svc.Upload(f.ctx, "a", "image/png", bytes.NewReader([]byte("not really a png")))
	assert.ErrorIs(t, err, ErrInvalidImage)

	big := append(append([]byte{}, pngHeader...), make([]byte, MaxAvatarBytes)...)
	_, err = svc.Upload(f.ctx, "a", "image/png", bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestAvatarUploadRejectedByModeration(t *testing.T) {
	f, svc, dir := newAvatarFixture(t, stubModerator{allowed: false})

	_, err := svc.Upload(f.ctx, "a", "image/png", bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, objectstore.ErrImageRejected)

	prof, err := f.profiles.Get(f.ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, prof.Avatar)

	entries, err := os.ReadDir(filepath.Join(dir, "avatars", "a"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAvatarOwner(t *testing.T) {
	id, ok := AvatarOwner("avatars/u1/abc.png")
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	for _, key := range []string{"avatars/abc.png", "pending/u1/abc.png", "avatars//abc.png", "avatars/u1/x/abc.png"} {
		_, ok := AvatarOwner(key)
		assert.False(t, ok, key)
	}
}

func TestAvatarRecheckClearsUnsafeCurrentAvatar(t *testing.T) {
	f, svc, dir := newAvatarFixture(t, nil)

	uploaded, err := svc.Upload(f.ctx, "a", "image/png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	store, err := objectstore.NewLocalStore(dir, "http://localhost:8080")
	require.NoError(t, err)

	removed, err := NewAvatarService(store, stubModerator{allowed: true}, f.profiles, zap.NewNop()).Recheck(f.ctx, uploaded.Key)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(uploaded.Key)))

	removed, err = NewAvatarService(store, stubModerator{allowed: false}, f.profiles, zap.NewNop()).Recheck(f.ctx, uploaded.Key)
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(uploaded.Key)))
	assert.True(t, os.IsNotExist(err))

	prof, err := f.profiles.Get(f.ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, prof.Avatar)
}

func TestAvatarRecheckWithoutModerator(t *testing.T) {
	f, svc, _ := newAvatarFixture(t, nil)
	removed, err := svc.Recheck(f.ctx, "avatars/a/x.png")
	require.NoError(t, err)
	assert.False(t, removed)
}
