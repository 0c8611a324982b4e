package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/logging"
)

type bookingRepo interface {
	Create(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) error
}

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, resourceID uuid.UUID, checkIn, checkOut time.Time, exclude ...domain.BookingStatus) (*AvailabilityResult, error)
}

type BookingService struct {
	bookings     bookingRepo
	availability availabilityChecker
}

func NewBookingService(bookings bookingRepo, availability availabilityChecker) *BookingService {
	return &BookingService{bookings: bookings, availability: availability}
}

type CreateBookingRequest struct {
	GuestID    uuid.UUID
	ResourceID uuid.UUID
	CheckIn    time.Time
	CheckOut   time.Time
	Amount     decimal.Decimal
	Currency   domain.Currency
}

// CreateBooking validates the request, runs the advisory availability
// read, then inserts. The read and the insert are not atomic; a
// concurrent request for the same range loses at the exclusion
// constraint and gets ErrBookingConflict, never a partial booking.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	log := logging.FromContext(ctx)

	if !req.CheckOut.After(req.CheckIn) {
		return nil, fmt.Errorf("CreateBooking: %w", domain.ErrInvalidDateRange)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("CreateBooking: amount must be positive: %w", domain.ErrValidation)
	}
	if !req.Currency.IsValid() {
		return nil, fmt.Errorf("CreateBooking: %w", domain.ErrValidation)
	}

	result, err := s.availability.CheckAvailability(ctx, req.ResourceID, req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("CreateBooking: %w", err)
	}
	if !result.Available {
		return nil, fmt.Errorf("CreateBooking: %w", domain.ErrBookingConflict)
	}

	now := time.Now().UTC()
	b := &domain.Booking{
		ID:         uuid.New(),
		ResourceID: req.ResourceID,
		GuestID:    req.GuestID,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Status:     domain.BookingStatusPendingPayment,
		Amount:     req.Amount,
		Currency:   req.Currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("CreateBooking: %w", err)
	}

	log.Info("booking created",
		"booking_id", b.ID,
		"resource_id", b.ResourceID,
		"check_in", b.CheckIn.Format(time.DateOnly),
		"check_out", b.CheckOut.Format(time.DateOnly),
		"amount", b.Amount,
	)
	return b, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetBooking: %w", err)
	}
	return b, nil
}

// CancelBooking releases the slot. Confirmed stays are cancellable;
// checked-in stays are not.
func (s *BookingService) CancelBooking(ctx context.Context, id, actorID uuid.UUID) error {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("CancelBooking: %w", err)
	}
	if b.GuestID != actorID {
		return fmt.Errorf("CancelBooking: %w", domain.ErrNotFound)
	}
	if b.Status == domain.BookingStatusCheckedIn || b.Status == domain.BookingStatusCancelled {
		return fmt.Errorf("CancelBooking: status %s: %w", b.Status, domain.ErrValidation)
	}

	if err := s.bookings.UpdateStatus(ctx, id, domain.BookingStatusCancelled); err != nil {
		return fmt.Errorf("CancelBooking: %w", err)
	}
	return nil
}
