package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookserve/settlement/internal/domain"
)

type availabilityBookingRepo interface {
	FindOverlapping(ctx context.Context, resourceID uuid.UUID, checkIn, checkOut time.Time, exclude []domain.BookingStatus) ([]domain.Booking, error)
}

// AvailabilityChecker is a pure read-then-decide component: it holds no
// lock, so callers must treat its answer as advisory and rely on the
// insert-time exclusion constraint for the authoritative decision.
type AvailabilityChecker struct {
	bookings availabilityBookingRepo
}

func NewAvailabilityChecker(bookings availabilityBookingRepo) *AvailabilityChecker {
	return &AvailabilityChecker{bookings: bookings}
}

type AvailabilityResult struct {
	Available bool
	Conflicts []domain.Booking
}

// CheckAvailability reports date-range conflicts for a resource using
// half-open interval semantics: back-to-back bookings where one
// checkout equals another checkin do not conflict.
func (c *AvailabilityChecker) CheckAvailability(ctx context.Context, resourceID uuid.UUID, checkIn, checkOut time.Time, exclude ...domain.BookingStatus) (*AvailabilityResult, error) {
	if !checkOut.After(checkIn) {
		return nil, fmt.Errorf("CheckAvailability: %w", domain.ErrInvalidDateRange)
	}

	conflicts, err := c.bookings.FindOverlapping(ctx, resourceID, checkIn, checkOut, exclude)
	if err != nil {
		return nil, fmt.Errorf("CheckAvailability: %w", err)
	}

	return &AvailabilityResult{
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}
