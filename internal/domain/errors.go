package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("invalid request")
	ErrBookingConflict   = errors.New("resource not available for the selected dates")
	ErrDuplicateRef      = errors.New("duplicate external reference")
	ErrAmountMismatch    = errors.New("amount does not match the quoted total")
	ErrInsufficientFunds = errors.New("insufficient wallet funds")
	ErrInvalidSignature  = errors.New("webhook signature invalid")
	ErrUnknownReference  = errors.New("unknown payment reference")
	ErrPaymentTerminal   = errors.New("payment already in terminal state")
	ErrAlreadyPaid       = errors.New("request already paid")
	ErrProvider          = errors.New("payment provider error")
	ErrQuoteNotPayable   = errors.New("quote is not accepted or has expired")
	ErrInvalidDateRange  = errors.New("check-out must be after check-in")
	ErrWalletExists      = errors.New("wallet already exists for this user")
)

// VerificationError identifies which external KYC check rejected a
// submission. It wraps ErrProvider when the upstream call itself failed.
type VerificationError struct {
	Check  string
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Reason != "" {
		return e.Check + " verification failed: " + e.Reason
	}
	return e.Check + " verification failed"
}

func (e *VerificationError) Unwrap() error { return e.Err }
