package domain

import (
	"time"

	"github.com/google/uuid"
)

type VendorStatus string

const (
	VendorStatusReviewing VendorStatus = "reviewing"
	VendorStatusApproved  VendorStatus = "approved"
	VendorStatusRejected  VendorStatus = "rejected"
)

// VerificationResult records the outcome of one external identity check
// (CAC business registry, NIN lookup) embedded in the vendor profile.
type VerificationResult struct {
	Check      string    `json:"check"`
	Passed     bool      `json:"passed"`
	MatchedAs  string    `json:"matched_as,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

// VendorProfile is persisted only after every requested external
// verification has returned affirmatively.
type VendorProfile struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	BusinessName    string
	RegistrationNum string
	NIN             string
	Address         string
	Verifications   []VerificationResult
	Status          VendorStatus
	Approved        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
