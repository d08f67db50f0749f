package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/huddle/backend/internal/geocode"
	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/services"
)

type AddressHandler struct {
	addresses *services.AddressService
	log       *zap.Logger
}

func NewAddressHandler(addresses *services.AddressService, log *zap.Logger) *AddressHandler {
	return &AddressHandler{addresses: addresses, log: logger.OrNop(log)}
}

// Validate answers 409 when a newer request from the same user superseded this one.
func (h *AddressHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.ValidateAddressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	check, err := h.addresses.Validate(r.Context(), userID, req.Address)
	if err != nil {
		if errors.Is(err, geocode.ErrSuperseded) {
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("Superseded by a newer request"))
			return
		}
		h.log.Error("[ValidateAddress] failed", zap.String("user", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to validate address"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(check))
}
