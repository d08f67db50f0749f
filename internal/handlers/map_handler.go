package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/services"
)

type MapHandler struct {
	maps *services.MapService
	log  *zap.Logger
}

func NewMapHandler(maps *services.MapService, log *zap.Logger) *MapHandler {
	return &MapHandler{maps: maps, log: logger.OrNop(log)}
}

func (h *MapHandler) Pins(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	pins, err := h.maps.Pins(r.Context(), userID)
	if err != nil {
		h.log.Error("[MapPins] failed", zap.String("user", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load map"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(pins))
}
