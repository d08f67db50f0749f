package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/objectstore"
)

// MaxAvatarBytes is the largest accepted avatar upload.
const MaxAvatarBytes = 1 << 20

var (
	ErrInvalidImage  = errors.New("only JPEG and PNG images are allowed")
	ErrImageTooLarge = errors.New("image must be 1MB or smaller")
)

var avatarExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

type AvatarService struct {
	objects   objectstore.Store
	moderator objectstore.Moderator
	profiles  *ProfileService
	log       *zap.Logger
}

// NewAvatarService wires the blob backend. moderator may be nil.
func NewAvatarService(objects objectstore.Store, moderator objectstore.Moderator, profiles *ProfileService, log *zap.Logger) *AvatarService {
	return &AvatarService{
		objects:   objects,
		moderator: moderator,
		profiles:  profiles,
		log:       logger.OrNop(log),
	}
}

func normalizeImageType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	return ct
}

// Upload stores a new avatar for userID, points the profile at it and removes the previous one.
func (s *AvatarService) Upload(ctx context.Context, userID, contentType string, body io.Reader) (*models.AvatarUploadResponse, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxAvatarBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxAvatarBytes {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}

	declared := normalizeImageType(contentType)
	if _, ok := avatarExtensions[declared]; strings.HasPrefix(declared, "image/") && !ok {
		return nil, ErrInvalidImage
	}
	sniffed := normalizeImageType(http.DetectContentType(data))
	ext, ok := avatarExtensions[sniffed]
	if !ok {
		return nil, ErrInvalidImage
	}

	prof, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%s/%s.%s", userID, uuid.New().String(), ext)
	url, err := s.objects.Put(ctx, key, sniffed, data)
	if err != nil {
		return nil, err
	}

	if s.moderator != nil {
		allowed, err := s.moderator.Allowed(ctx, key)
		if err != nil || !allowed {
			s.discard(ctx, key)
			if err != nil {
				return nil, err
			}
			s.log.Info("[Avatars] image rejected", zap.String("user", userID))
			return nil, objectstore.ErrImageRejected
		}
	}

	updated, err := s.profiles.Update(ctx, userID, &models.UpdateProfileRequest{Avatar: &url})
	if err != nil {
		s.discard(ctx, key)
		return nil, err
	}

	if prof.Avatar != nil {
		if oldKey, ok := s.objects.KeyFromURL(*prof.Avatar); ok && oldKey != key {
			s.discard(ctx, oldKey)
		}
	}

	return &models.AvatarUploadResponse{Key: key, URL: url, Profile: *updated}, nil
}

// Remove clears the avatar and deletes the stored object when it belongs to this backend.
func (s *AvatarService) Remove(ctx context.Context, userID string) (*models.Profile, error) {
	prof, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prof.Avatar == nil {
		return prof, nil
	}

	empty := ""
	updated, err := s.profiles.Update(ctx, userID, &models.UpdateProfileRequest{Avatar: &empty})
	if err != nil {
		return nil, err
	}
	if key, ok := s.objects.KeyFromURL(*prof.Avatar); ok {
		s.discard(ctx, key)
	}
	return updated, nil
}

func (s *AvatarService) discard(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Warn("[Avatars] delete failed", zap.String("key", key), zap.Error(err))
	}
}

// AvatarOwner returns the user id embedded in an avatar object key.
func AvatarOwner(key string) (string, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "avatars" || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1], true
}

// Recheck moderates an already stored avatar. An unsafe object is deleted and, when it is
// still the owner's current avatar, the profile is cleared. It reports whether the object was removed.
func (s *AvatarService) Recheck(ctx context.Context, key string) (bool, error) {
	if s.moderator == nil {
		return false, nil
	}
	userID, ok := AvatarOwner(key)
	if !ok {
		return false, nil
	}

	allowed, err := s.moderator.Allowed(ctx, key)
	if err != nil {
		return false, err
	}
	if allowed {
		return false, nil
	}

	if err := s.objects.Delete(ctx, key); err != nil {
		return false, err
	}
	s.log.Info("[Avatars] stored image rejected", zap.String("user", userID), zap.String("key", key))

	prof, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	if prof.Avatar == nil {
		return true, nil
	}
	if current, ok := s.objects.KeyFromURL(*prof.Avatar); !ok || current != key {
		return true, nil
	}

	empty := ""
	if _, err := s.profiles.Update(ctx, userID, &models.UpdateProfileRequest{Avatar: &empty}); err != nil {
		return true, err
	}
	return true, nil
}
