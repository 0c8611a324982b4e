package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestBookingOverlaps(t *testing.T) {
	existing := &Booking{CheckIn: day(10), CheckOut: day(15)}

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		want     bool
	}{
		{"identical range", day(10), day(15), true},
		{"contained range", day(11), day(14), true},
		{"overlaps start", day(8), day(12), true},
		{"overlaps end", day(12), day(18), true},
		{"covers existing", day(5), day(20), true},
		{"back-to-back after", day(15), day(20), false},
		{"back-to-back before", day(5), day(10), false},
		{"disjoint after", day(20), day(25), false},
		{"one night inside", day(12), day(13), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, existing.Overlaps(tc.checkIn, tc.checkOut))
		})
	}
}

func TestBookingStatusHoldsSlot(t *testing.T) {
	assert.True(t, BookingStatusPendingPayment.HoldsSlot())
	assert.True(t, BookingStatusConfirmed.HoldsSlot())
	assert.True(t, BookingStatusCheckedIn.HoldsSlot())
	assert.False(t, BookingStatusCancelled.HoldsSlot())
	assert.False(t, BookingStatusFailed.HoldsSlot())
}
