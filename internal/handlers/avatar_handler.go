package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/middleware"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/objectstore"
	"github.com/huddle/backend/internal/services"
)

// multipart framing on top of the image itself
const avatarFormOverhead = 64 << 10

type AvatarHandler struct {
	avatars  *services.AvatarService
	profiles *services.ProfileService
	log      *zap.Logger
}

func NewAvatarHandler(avatars *services.AvatarService, profiles *services.ProfileService, log *zap.Logger) *AvatarHandler {
	return &AvatarHandler{avatars: avatars, profiles: profiles, log: logger.OrNop(log)}
}

func (h *AvatarHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAvatarBytes+avatarFormOverhead)
	if err := r.ParseMultipartForm(services.MaxAvatarBytes + avatarFormOverhead); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Image must be 1MB or smaller"))
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("No image file provided"))
		return
	}
	defer file.Close()

	if _, err := h.profiles.GetOrCreate(r.Context(), sess.UserID, sess.Email, sess.Name); err != nil {
		h.log.Error("[UploadAvatar] profile load failed", zap.String("user", sess.UserID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to upload image"))
		return
	}

	resp, err := h.avatars.Upload(r.Context(), sess.UserID, header.Header.Get("Content-Type"), file)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidImage):
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Only JPEG and PNG images are allowed"))
		case errors.Is(err, services.ErrImageTooLarge):
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Image must be 1MB or smaller"))
		case errors.Is(err, objectstore.ErrImageRejected):
			writeJSON(w, http.StatusUnprocessableEntity, models.NewErrorResponse("This image can't be used as a profile picture"))
		default:
			h.log.Error("[UploadAvatar] failed", zap.String("user", sess.UserID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to upload image"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(resp))
}

func (h *AvatarHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	prof, err := h.avatars.Remove(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Profile not found"))
			return
		}
		h.log.Error("[RemoveAvatar] failed", zap.String("user", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to remove image"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(prof))
}
