package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/budgetwise/backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is a persistence fault and maps to 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		services.SendErrorResponse(w, validationErr.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrInsufficientBalance):
		services.SendErrorResponse(w, "Insufficient balance", http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrNotFound):
		services.SendErrorResponse(w, "Not found", http.StatusNotFound, nil)
	case errors.Is(err, services.ErrNotAuthorized):
		services.SendErrorResponse(w, "Not authorized", http.StatusForbidden, nil)
	default:
		services.SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
	}
}
