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

type ChatHandler struct {
	chat *services.ChatService
	log  *zap.Logger
}

func NewChatHandler(chat *services.ChatService, log *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, log: logger.OrNop(log)}
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	msgs, err := h.chat.History(r.Context(), userID, chi.URLParam(r, "eventId"))
	if err != nil {
		if errors.Is(err, services.ErrEventNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Event not found"))
			return
		}
		h.log.Error("[ChatHistory] failed", zap.String("user", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load messages"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(msgs))
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.SendChatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	msg, err := h.chat.Send(r.Context(), userID, chi.URLParam(r, "eventId"), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(models.ValidationErrors{"text": "Message text is required"}))
		case errors.Is(err, services.ErrEventNotFound):
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Event not found"))
		default:
			h.log.Error("[ChatSend] failed", zap.String("user", userID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to send message"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(msg))
}
