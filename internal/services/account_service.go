package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/session"
	"github.com/huddle/backend/internal/storage"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AccountService is the local identity provider: it owns password accounts and issues tokens.
type AccountService struct {
	accounts storage.AccountStore
	profiles *ProfileService
	revoker  session.Revoker
	secret   []byte
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewAccountService(accounts storage.AccountStore, profiles *ProfileService, revoker session.Revoker, jwtSecret string, ttl time.Duration, log *zap.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		profiles: profiles,
		revoker:  revoker,
		secret:   []byte(jwtSecret),
		ttl:      ttl,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

func (s *AccountService) SignUp(ctx context.Context, req *models.SignUpRequest) (*models.AuthResponse, error) {
	if err := req.Validate().OrNil(); err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(req.Email)

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         strings.TrimSpace(req.Name),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	prof, err := s.profiles.GetOrCreate(ctx, account.ID, account.Email, account.Name)
	if err != nil {
		return nil, err
	}

	s.log.Info("[Accounts] signed up", zap.String("user", account.ID))
	return s.issue(prof)
}

func (s *AccountService) SignIn(ctx context.Context, req *models.SignInRequest) (*models.AuthResponse, error) {
	if err := req.Validate().OrNil(); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	prof, err := s.profiles.GetOrCreate(ctx, account.ID, account.Email, account.Name)
	if err != nil {
		return nil, err
	}
	return s.issue(prof)
}

// SignOut revokes a locally issued token until it would have expired.
func (s *AccountService) SignOut(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" || s.revoker == nil {
		return nil
	}
	return s.revoker.Revoke(ctx, tokenID, expiresAt)
}

func (s *AccountService) issue(prof *models.Profile) (*models.AuthResponse, error) {
	token, _, err := session.Issue(s.secret, prof.ID, prof.Email, s.now(), s.ttl)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, Profile: *prof}, nil
}
