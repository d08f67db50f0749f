package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/middleware"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/services"
)

type AuthHandler struct {
	accounts *services.AccountService
	log      *zap.Logger
}

func NewAuthHandler(accounts *services.AccountService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, log: logger.OrNop(log)}
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	resp, err := h.accounts.SignUp(r.Context(), &req)
	if err != nil {
		if writeValidation(w, err) {
			return
		}
		if errors.Is(err, services.ErrEmailExists) {
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("Email already registered"))
			return
		}
		h.log.Error("[SignUp] failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create account"))
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(resp))
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	resp, err := h.accounts.SignIn(r.Context(), &req)
	if err != nil {
		if writeValidation(w, err) {
			return
		}
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid email or password"))
			return
		}
		h.log.Error("[SignIn] failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Sign in failed"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(resp))
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	if err := h.accounts.SignOut(r.Context(), sess.TokenID, sess.ExpiresAt); err != nil {
		h.log.Error("[SignOut] revoke failed", zap.String("user", sess.UserID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Sign out failed"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Signed out"}))
}
