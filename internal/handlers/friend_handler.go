package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/services"
)

type FriendHandler struct {
	friends *services.FriendService
	log     *zap.Logger
}

func NewFriendHandler(friends *services.FriendService, log *zap.Logger) *FriendHandler {
	return &FriendHandler{friends: friends, log: logger.OrNop(log)}
}

func (h *FriendHandler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, services.ErrCannotFriendSelf):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("You cannot send a friend request to yourself"))
	case errors.Is(err, services.ErrAlreadyFriends):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("You are already friends with this user"))
	case errors.Is(err, services.ErrRequestExists):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("A friend request already exists between you and this user"))
	case errors.Is(err, services.ErrFriendRequestNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Friend request not found"))
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse("You cannot change this friend request"))
	default:
		h.log.Error("["+op+"] failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update friends"))
	}
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	lists, err := h.friends.List(r.Context(), userID)
	if err != nil {
		h.log.Error("[ListFriends] failed", zap.String("user", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load friends"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(lists))
}

// SendRequest targets a profile id, or an email address when no id is given.
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.SendFriendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	var (
		fr  *models.FriendRequest
		err error
	)
	if id := strings.TrimSpace(req.AddresseeID); id != "" {
		fr, err = h.friends.SendRequest(r.Context(), userID, id)
		if errors.Is(err, services.ErrProfileNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("User not found"))
			return
		}
	} else {
		fr, err = h.friends.SendRequestByEmail(r.Context(), userID, req.Email)
		if errors.Is(err, services.ErrProfileNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("No user with that email address has signed up yet"))
			return
		}
	}
	if err != nil {
		h.writeError(w, "SendFriendRequest", err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(fr))
}

func (h *FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

func (h *FriendHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *FriendHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	fr, err := h.friends.Respond(r.Context(), userID, chi.URLParam(r, "requestId"), accept)
	if err != nil {
		h.writeError(w, "RespondFriendRequest", err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(fr))
}

func (h *FriendHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.friends.Cancel(r.Context(), userID, chi.URLParam(r, "requestId")); err != nil {
		h.writeError(w, "CancelFriendRequest", err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Friend request cancelled"}))
}
