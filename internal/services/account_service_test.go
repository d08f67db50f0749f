package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/session"
	"github.com/huddle/backend/internal/storage"
)

func newAccountService(t *testing.T) (*AccountService, session.Revoker) {
	t.Helper()
	accounts, err := storage.NewMemoryAccountStore("")
	require.NoError(t, err)
	profileStore, err := storage.NewMemoryProfileStore("")
	require.NoError(t, err)
	revoker := session.NewMemoryRevoker()
	return NewAccountService(accounts, NewProfileService(profileStore, zap.NewNop()), revoker, "secret", time.Hour, zap.NewNop()), revoker
}

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAccountService(t)

	resp, err := svc.SignUp(ctx, &models.SignUpRequest{Name: "Alice", Email: "Alice@Example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice@example.com", resp.Profile.Email)
	assert.Equal(t, "Alice", resp.Profile.Name)

	_, err = svc.SignUp(ctx, &models.SignUpRequest{Name: "Alice", Email: "alice@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrEmailExists)

	in, err := svc.SignIn(ctx, &models.SignInRequest{Email: "ALICE@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, resp.Profile.ID, in.Profile.ID)

	_, err = svc.SignIn(ctx, &models.SignInRequest{Email: "alice@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, &models.SignInRequest{Email: "bob@example.com", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpValidation(t *testing.T) {
	svc, _ := newAccountService(t)
	_, err := svc.SignUp(context.Background(), &models.SignUpRequest{Email: "not-an-email", Password: "123"})

	var verrs models.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "email")
	assert.Contains(t, verrs, "password")
	assert.Contains(t, verrs, "name")
}

func TestSignOutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc, revoker := newAccountService(t)

	resp, err := svc.SignUp(ctx, &models.SignUpRequest{Name: "Alice", Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	claims, err := session.Parse([]byte("secret"), resp.Token)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, claims.ID, claims.ExpiresAtTime()))
	revoked, err := revoker.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestProfileGetOrCreateAndUpdate(t *testing.T) {
	f := newFixture(t)

	p, err := f.profiles.GetOrCreate(f.ctx, "u1", "", "")
	require.NoError(t, err)
	assert.Empty(t, p.Email)

	p, err = f.profiles.GetOrCreate(f.ctx, "u1", "U1@Example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", p.Email)

	short := "A"
	_, err = f.profiles.Update(f.ctx, "u1", &models.UpdateProfileRequest{Name: &short})
	var verrs models.ValidationErrors
	assert.True(t, errors.As(err, &verrs))

	name := "Alice"
	p, err = f.profiles.Update(f.ctx, "u1", &models.UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)

	f.addUser(t, "u2", "Bob")
	taken := "bob@example.com"
	_, err = f.profiles.Update(f.ctx, "u1", &models.UpdateProfileRequest{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	results, err := f.profiles.Search(f.ctx, "", "u1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "u2", results[0].ID)
}
