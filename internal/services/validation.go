package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the JSON shape of every failed request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// ValidationHelper provides shared request validation for the handlers.
type ValidationHelper struct {
	validator *validator.Validate
}

func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse writes a JSON error response, attaching per-field details
// when the error came from struct validation.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		if fieldErrs, ok := validationErr.(validator.ValidationErrors); ok {
			errorResp.Details = make(map[string]string)
			for _, err := range fieldErrs {
				errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}
