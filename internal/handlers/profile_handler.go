package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/middleware"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/services"
)

type ProfileHandler struct {
	profiles *services.ProfileService
	log      *zap.Logger
}

func NewProfileHandler(profiles *services.ProfileService, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, log: logger.OrNop(log)}
}

// GetMe returns the caller's profile, creating it on first access.
func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	prof, err := h.profiles.GetOrCreate(r.Context(), sess.UserID, sess.Email, sess.Name)
	if err != nil {
		h.log.Error("[GetMe] failed", zap.String("user", sess.UserID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load profile"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(prof))
}

func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req models.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if _, err := h.profiles.GetOrCreate(r.Context(), sess.UserID, sess.Email, sess.Name); err != nil {
		h.log.Error("[UpdateMe] load failed", zap.String("user", sess.UserID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update profile"))
		return
	}

	prof, err := h.profiles.Update(r.Context(), sess.UserID, &req)
	if err != nil {
		if writeValidation(w, err) {
			return
		}
		if errors.Is(err, services.ErrEmailTaken) {
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("Email is already used by another account"))
			return
		}
		h.log.Error("[UpdateMe] failed", zap.String("user", sess.UserID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update profile"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(prof))
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	prof, err := h.profiles.Get(r.Context(), chi.URLParam(r, "profileId"))
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Profile not found"))
			return
		}
		h.log.Error("[GetProfile] failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load profile"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(prof))
}

func (h *ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	results, err := h.profiles.Search(r.Context(), r.URL.Query().Get("q"), userID)
	if err != nil {
		h.log.Error("[SearchProfiles] failed", zap.String("user", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to search profiles"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(results))
}
