package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	r := NewMemoryRevoker()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "jti-1", now.Add(time.Hour)))
	require.NoError(t, r.Revoke(ctx, "jti-old", now.Add(-time.Minute)))

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIssueAndParse(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()

	token, claims, err := Issue(secret, "user-1", "a@example.com", now, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := Parse(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.UserID)
	assert.Equal(t, claims.ID, parsed.ID)

	_, err = Parse([]byte("other"), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, _, err := Issue(secret, "user-1", "", now.Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	_, err = Parse(secret, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
