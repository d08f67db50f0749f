package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/storage"
)

const profileSearchLimit = 50

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmailTaken      = errors.New("email already used by another profile")
)

type ProfileService struct {
	store storage.ProfileStore
	log   *zap.Logger
}

func NewProfileService(store storage.ProfileStore, log *zap.Logger) *ProfileService {
	return &ProfileService{store: store, log: logger.OrNop(log)}
}

func (s *ProfileService) Create(ctx context.Context, profile *models.Profile) error {
	return s.store.Create(ctx, profile)
}

// GetOrCreate returns the user's profile, creating it on first access.
// An empty stored email is backfilled from the session.
func (s *ProfileService) GetOrCreate(ctx context.Context, userID, email, name string) (*models.Profile, error) {
	email = models.NormalizeEmail(email)

	prof, err := s.store.Get(ctx, userID)
	if err == nil {
		if email != "" && prof.Email == "" {
			updated, err := s.store.Update(ctx, userID, &models.UpdateProfileRequest{Email: &email})
			if err != nil {
				s.log.Warn("[Profiles] email backfill failed", zap.String("user", userID), zap.Error(err))
				return prof, nil
			}
			return updated, nil
		}
		return prof, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	prof = &models.Profile{
		ID:        userID,
		Name:      strings.TrimSpace(name),
		Email:     email,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, prof); err != nil {
		// If a race created it, fetch again.
		if retry, err2 := s.store.Get(ctx, userID); err2 == nil {
			return retry, nil
		}
		return nil, err
	}
	return prof, nil
}

func (s *ProfileService) Get(ctx context.Context, id string) (*models.Profile, error) {
	prof, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return prof, err
}

// GetMany returns profiles for ids in the given order. Unknown ids get a bare placeholder
// so attendee counts stay accurate.
func (s *ProfileService) GetMany(ctx context.Context, ids []string) ([]models.Profile, error) {
	found, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			out = append(out, p)
		} else {
			out = append(out, models.Profile{ID: id})
		}
	}
	return out, nil
}

func (s *ProfileService) Update(ctx context.Context, id string, req *models.UpdateProfileRequest) (*models.Profile, error) {
	if err := req.Validate().OrNil(); err != nil {
		return nil, err
	}
	if req.Email != nil {
		other, err := s.store.FindByEmail(ctx, *req.Email)
		if err == nil && other.ID != id {
			return nil, ErrEmailTaken
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	prof, err := s.store.Update(ctx, id, req)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return prof, err
}

func (s *ProfileService) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	prof, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return prof, err
}

// Search matches name or email case-insensitively, leaving out excludeID.
func (s *ProfileService) Search(ctx context.Context, query, excludeID string) ([]models.Profile, error) {
	results, err := s.store.Search(ctx, query, profileSearchLimit+1)
	if err != nil {
		return nil, err
	}
	out := make([]models.Profile, 0, len(results))
	for _, p := range results {
		if p.ID == excludeID {
			continue
		}
		out = append(out, p)
		if len(out) == profileSearchLimit {
			break
		}
	}
	return out, nil
}
