package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/services"
)

type EventHandler struct {
	events *services.EventService
	log    *zap.Logger
}

func NewEventHandler(events *services.EventService, log *zap.Logger) *EventHandler {
	return &EventHandler{events: events, log: logger.OrNop(log)}
}

func (h *EventHandler) writeError(w http.ResponseWriter, op, userID string, err error) {
	if writeValidation(w, err) {
		return
	}
	switch {
	case errors.Is(err, services.ErrEventNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Event not found"))
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Only the host can do that"))
	default:
		h.log.Error("["+op+"] failed", zap.String("user", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Something went wrong, please try again"))
	}
}

// List returns the caller's events split into active and expired.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	lists, err := h.events.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, "ListEvents", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(lists))
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	view, err := h.events.Create(r.Context(), userID, &req)
	if err != nil {
		h.writeError(w, "CreateEvent", userID, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(view))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.events.Get(r.Context(), userID, chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, "GetEvent", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(view))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.events.Delete(r.Context(), userID, chi.URLParam(r, "eventId")); err != nil {
		h.writeError(w, "DeleteEvent", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Event deleted"}))
}

func (h *EventHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.events.Leave(r.Context(), userID, chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, "LeaveEvent", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(view))
}

func (h *EventHandler) Vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.VoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	view, err := h.events.Vote(r.Context(), userID, chi.URLParam(r, "eventId"), &req)
	if err != nil {
		h.writeError(w, "Vote", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(view))
}

func (h *EventHandler) RespondInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.InvitationResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	view, err := h.events.RespondInvitation(r.Context(), userID, chi.URLParam(r, "eventId"), &req)
	if err != nil {
		h.writeError(w, "RespondInvitation", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(view))
}
