package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyUSD Currency = "USD"
)

func (c Currency) IsValid() bool {
	return c == CurrencyNGN || c == CurrencyUSD
}

type BookingStatus string

const (
	BookingStatusDraft          BookingStatus = "draft"
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCheckedIn      BookingStatus = "checked_in"
	BookingStatusFailed         BookingStatus = "failed"
	BookingStatusCancelled      BookingStatus = "cancelled"
)

// HoldsSlot reports whether a booking in this status still occupies its
// date range. Cancelled and failed bookings release the slot; a booking
// awaiting payment keeps it so the exclusion constraint and the read-side
// availability check agree.
func (s BookingStatus) HoldsSlot() bool {
	return s != BookingStatusCancelled && s != BookingStatusFailed
}

// Booking is a reservation intent for a dated resource (room, apartment,
// event ticket block). Date ranges are half-open: [CheckIn, CheckOut).
// Bookings are never deleted, only status-transitioned.
type Booking struct {
	ID         uuid.UUID
	ResourceID uuid.UUID
	GuestID    uuid.UUID
	CheckIn    time.Time
	CheckOut   time.Time
	Status     BookingStatus
	Amount     decimal.Decimal
	Currency   Currency
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Overlaps applies half-open interval semantics: a checkout equal to
// another booking's checkin does not conflict.
func (b *Booking) Overlaps(checkIn, checkOut time.Time) bool {
	return b.CheckIn.Before(checkOut) && b.CheckOut.After(checkIn)
}
