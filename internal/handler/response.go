package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bookserve/settlement/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var verr *domain.VerificationError
	if errors.As(err, &verr) {
		RespondAppError(w, ErrVerificationFailed, map[string]string{
			"check":  verr.Check,
			"reason": verr.Reason,
		})
		return
	}

	var appErr *AppError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrInvalidDateRange):
		appErr = ErrInvalidDateRange
	case errors.Is(err, domain.ErrBookingConflict):
		appErr = ErrBookingConflict
	case errors.Is(err, domain.ErrAmountMismatch):
		appErr = ErrAmountMismatch
	case errors.Is(err, domain.ErrInsufficientFunds):
		appErr = ErrInsufficientFunds
	case errors.Is(err, domain.ErrAlreadyPaid):
		appErr = ErrAlreadyPaid
	case errors.Is(err, domain.ErrDuplicateRef):
		appErr = ErrDuplicateReference
	case errors.Is(err, domain.ErrQuoteNotPayable):
		appErr = ErrQuoteNotPayable
	case errors.Is(err, domain.ErrWalletExists):
		appErr = ErrWalletExists
	case errors.Is(err, domain.ErrInvalidSignature):
		appErr = ErrInvalidSignature
	case errors.Is(err, domain.ErrProvider):
		appErr = ErrProviderFailure
	case errors.Is(err, domain.ErrValidation):
		appErr = ErrValidationFailed
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
