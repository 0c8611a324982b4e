package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentRail string

const (
	RailCard   PaymentRail = "card"
	RailCrypto PaymentRail = "crypto"
	RailWallet PaymentRail = "wallet"
)

func (r PaymentRail) IsValid() bool {
	return r == RailCard || r == RailCrypto || r == RailWallet
}

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// Terminal statuses never transition again; every later event for the
// same reference is a no-op. The one exception is completed → refunded,
// which the reconciler applies through its own guarded path.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// RequestType identifies the aggregate a payment settles.
type RequestType string

const (
	RequestTypeBooking          RequestType = "booking"
	RequestTypeServiceRequest   RequestType = "service_request"
	RequestTypeWalletDeposit    RequestType = "wallet_deposit"
	RequestTypeWalletWithdrawal RequestType = "wallet_withdrawal"
)

func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypeBooking, RequestTypeServiceRequest, RequestTypeWalletDeposit, RequestTypeWalletWithdrawal:
		return true
	}
	return false
}

// Payment is one attempt to collect (or pay out) money for a request.
// Reference is the external idempotency key, unique per rail; for the
// card and crypto rails it is generated by this system before the
// provider ever sees it, so a webhook can always be correlated.
type Payment struct {
	ID            uuid.UUID
	Rail          PaymentRail
	Reference     string
	RequestType   RequestType
	RequestID     uuid.UUID
	PayerID       uuid.UUID
	Amount        decimal.Decimal
	Currency      Currency
	PayCurrency   *string
	Status        PaymentStatus
	ProviderRef   *string
	FailureReason *string
	Metadata      json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

type PaymentEventType string

const (
	PaymentEventTypeCreated   PaymentEventType = "created"
	PaymentEventTypeCompleted PaymentEventType = "completed"
	PaymentEventTypeFailed    PaymentEventType = "failed"
	PaymentEventTypeRefunded  PaymentEventType = "refunded"
)

// PaymentEvent is an append-only audit record written in the same
// transaction as the status change it describes.
type PaymentEvent struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	EventType PaymentEventType
	Actor     string
	Payload   json.RawMessage
	CreatedAt time.Time
}
