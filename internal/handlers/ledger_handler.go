package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/budgetwise/backend/internal/middleware"
	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/services"
)

// LedgerHandler exposes income and expense CRUD over HTTP. The same handler
// serves both entry types; routing decides which type a request targets.
type LedgerHandler struct {
	service   *services.LedgerService
	validator *services.ValidationHelper
}

func NewLedgerHandler(service *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type entryRequest struct {
	Title              string           `json:"title" validate:"required"`
	Amount             *decimal.Decimal `json:"amount" validate:"required"`
	Category           string           `json:"category" validate:"required"`
	Description        string           `json:"description" validate:"max=500"`
	Date               *time.Time       `json:"date"`
	IsRecurring        bool             `json:"isRecurring"`
	RecurrenceInterval string           `json:"recurrenceInterval" validate:"omitempty,oneof=daily weekly monthly"`
}

func (req *entryRequest) toInput() services.EntryInput {
	in := services.EntryInput{
		Title:              req.Title,
		Amount:             *req.Amount,
		Category:           req.Category,
		Description:        req.Description,
		IsRecurring:        req.IsRecurring,
		RecurrenceInterval: models.RecurrenceInterval(req.RecurrenceInterval),
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	return in
}

// Routes mounts the CRUD endpoints for one entry type.
func (h *LedgerHandler) Routes(r chi.Router, entryType models.EntryType) {
	r.Get("/", h.list(entryType))
	r.Post("/", h.create(entryType))
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *LedgerHandler) create(entryType models.EntryType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
			return
		}

		req, ok := h.decodeEntryRequest(w, r)
		if !ok {
			return
		}

		entry, err := h.service.Create(r.Context(), userID, entryType, req.toInput())
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "entry": entry})
	}
}

func (h *LedgerHandler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	req, ok := h.decodeEntryRequest(w, r)
	if !ok {
		return
	}

	entry, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entry": entry})
}

func (h *LedgerHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Entry deleted"})
}

func (h *LedgerHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	entry, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entry": entry})
}

func (h *LedgerHandler) list(entryType models.EntryType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
			return
		}

		entries, err := h.service.List(r.Context(), userID, entryType)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if entries == nil {
			entries = []models.LedgerEntry{}
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "entries": entries})
	}
}

func (h *LedgerHandler) decodeEntryRequest(w http.ResponseWriter, r *http.Request) (*entryRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req entryRequest
	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return nil, false
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return nil, false
	}
	return &req, true
}
