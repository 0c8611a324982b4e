package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ServiceVertical string

const (
	VerticalLogistics ServiceVertical = "logistics"
	VerticalSecurity  ServiceVertical = "security"
)

type ServiceRequestStatus string

const (
	ServiceRequestStatusDraft     ServiceRequestStatus = "draft"
	ServiceRequestStatusQuoted    ServiceRequestStatus = "quoted"
	ServiceRequestStatusPaid      ServiceRequestStatus = "paid"
	ServiceRequestStatusFulfilled ServiceRequestStatus = "fulfilled"
	ServiceRequestStatusFailed    ServiceRequestStatus = "failed"
	ServiceRequestStatusCancelled ServiceRequestStatus = "cancelled"
)

// ServiceRequest is a quoted job (logistics run, security detail) rather
// than a dated resource reservation; it is priced by a vendor quote.
type ServiceRequest struct {
	ID          uuid.UUID
	Vertical    ServiceVertical
	RequesterID uuid.UUID
	VendorID    uuid.UUID
	Details     json.RawMessage
	Status      ServiceRequestStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusExpired  QuoteStatus = "expired"
)

// Quote is a vendor-issued price breakdown. Expiry is evaluated at read
// time against ValidUntil; there is no background sweep.
type Quote struct {
	ID         uuid.UUID
	RequestID  uuid.UUID
	Total      decimal.Decimal
	Currency   Currency
	Breakdown  json.RawMessage
	ValidUntil time.Time
	Status     QuoteStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EffectiveStatus folds lapsed validity into the status without
// mutating stored state.
func (q *Quote) EffectiveStatus(now time.Time) QuoteStatus {
	if q.Status == QuoteStatusAccepted {
		return q.Status
	}
	if !q.ValidUntil.After(now) {
		return QuoteStatusExpired
	}
	return q.Status
}

// Payable reports whether a payment intent may be built from this
// quote. Acceptance locks the price in, so an accepted quote stays
// payable even after ValidUntil passes.
func (q *Quote) Payable(now time.Time) bool {
	return q.EffectiveStatus(now) == QuoteStatusAccepted
}
