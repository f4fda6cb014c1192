package handlers

import (
	"errors"
	"net/http"

	"github.com/budgetwise/backend/internal/middleware"
	"github.com/budgetwise/backend/internal/services"
	"github.com/budgetwise/backend/internal/storage"
)

// UserHandler serves the authenticated user's account, including the
// aggregate totals maintained by the ledger service.
type UserHandler struct {
	users storage.UserStore
}

func NewUserHandler(users storage.UserStore) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		services.SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		services.SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}
