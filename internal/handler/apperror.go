package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidSignature   = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrBookingConflict    = &AppError{http.StatusConflict, "DATES_UNAVAILABLE", "Resource is no longer available for the selected dates"}
	ErrInvalidDateRange   = &AppError{http.StatusBadRequest, "INVALID_DATE_RANGE", "Check-out must be after check-in"}
	ErrAmountMismatch     = &AppError{http.StatusUnprocessableEntity, "AMOUNT_MISMATCH", "Amount does not match the quoted total"}
	ErrInsufficientFunds  = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient wallet funds"}
	ErrAlreadyPaid        = &AppError{http.StatusConflict, "ALREADY_PAID", "Request has already been paid"}
	ErrDuplicateReference = &AppError{http.StatusConflict, "DUPLICATE_REFERENCE", "External reference already used"}
	ErrQuoteNotPayable    = &AppError{http.StatusUnprocessableEntity, "QUOTE_NOT_PAYABLE", "Quote is not accepted or has expired"}
	ErrWalletExists       = &AppError{http.StatusConflict, "WALLET_EXISTS", "Wallet already exists for this user"}
	ErrProviderFailure    = &AppError{http.StatusBadGateway, "PROVIDER_ERROR", "Payment provider error"}
	ErrVerificationFailed = &AppError{http.StatusUnprocessableEntity, "VERIFICATION_FAILED", "Identity verification failed"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
