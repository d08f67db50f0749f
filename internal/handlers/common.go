package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/huddle/backend/internal/middleware"
	"github.com/huddle/backend/internal/models"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v)
}

// writeValidation writes a 400 when err carries field errors and reports whether it did.
func writeValidation(w http.ResponseWriter, err error) bool {
	var verrs models.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verrs))
		return true
	}
	return false
}

// currentUser writes a 401 when the request carries no session.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return "", false
	}
	return userID, true
}
