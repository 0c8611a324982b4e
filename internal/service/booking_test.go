package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookserve/settlement/internal/domain"
)

type fakeBookingStore struct {
	bookings map[uuid.UUID]*domain.Booking
	created  *domain.Booking
	statuses map[uuid.UUID]domain.BookingStatus
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{
		bookings: make(map[uuid.UUID]*domain.Booking),
		statuses: make(map[uuid.UUID]domain.BookingStatus),
	}
}

func (f *fakeBookingStore) Create(_ context.Context, b *domain.Booking) error {
	f.created = b
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeBookingStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookingStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.BookingStatus) error {
	f.statuses[id] = status
	return nil
}

type fakeAvailability struct {
	result *AvailabilityResult
	err    error
}

func (f *fakeAvailability) CheckAvailability(_ context.Context, _ uuid.UUID, _, _ time.Time, _ ...domain.BookingStatus) (*AvailabilityResult, error) {
	return f.result, f.err
}

func mar(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateBooking(t *testing.T) {
	validReq := CreateBookingRequest{
		GuestID:    uuid.New(),
		ResourceID: uuid.New(),
		CheckIn:    mar(10),
		CheckOut:   mar(15),
		Amount:     decimal.NewFromInt(50000),
		Currency:   domain.CurrencyNGN,
	}

	tests := []struct {
		name      string
		mutate    func(r *CreateBookingRequest)
		available bool
		wantErr   error
	}{
		{"happy path", nil, true, nil},
		{"checkout before checkin", func(r *CreateBookingRequest) { r.CheckOut = mar(8) }, true, domain.ErrInvalidDateRange},
		{"zero-night stay", func(r *CreateBookingRequest) { r.CheckOut = r.CheckIn }, true, domain.ErrInvalidDateRange},
		{"zero amount", func(r *CreateBookingRequest) { r.Amount = decimal.Zero }, true, domain.ErrValidation},
		{"negative amount", func(r *CreateBookingRequest) { r.Amount = decimal.NewFromInt(-100) }, true, domain.ErrValidation},
		{"unknown currency", func(r *CreateBookingRequest) { r.Currency = "XYZ" }, true, domain.ErrValidation},
		{"dates taken", nil, false, domain.ErrBookingConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeBookingStore()
			svc := NewBookingService(store, &fakeAvailability{
				result: &AvailabilityResult{Available: tc.available},
			})

			req := validReq
			if tc.mutate != nil {
				tc.mutate(&req)
			}

			b, err := svc.CreateBooking(context.Background(), req)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, store.created, "no booking row on rejection")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.BookingStatusPendingPayment, b.Status)
			assert.Equal(t, req.ResourceID, b.ResourceID)
			assert.True(t, b.Amount.Equal(req.Amount))
			require.NotNil(t, store.created)
		})
	}
}

func TestCancelBooking(t *testing.T) {
	guestID := uuid.New()

	tests := []struct {
		name    string
		status  domain.BookingStatus
		actorID uuid.UUID
		wantErr error
	}{
		{"pending payment is cancellable", domain.BookingStatusPendingPayment, guestID, nil},
		{"confirmed is cancellable", domain.BookingStatusConfirmed, guestID, nil},
		{"checked in is not", domain.BookingStatusCheckedIn, guestID, domain.ErrValidation},
		{"already cancelled", domain.BookingStatusCancelled, guestID, domain.ErrValidation},
		{"someone else's booking reads as missing", domain.BookingStatusConfirmed, uuid.New(), domain.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeBookingStore()
			b := &domain.Booking{ID: uuid.New(), GuestID: guestID, Status: tc.status}
			store.bookings[b.ID] = b

			svc := NewBookingService(store, &fakeAvailability{})
			err := svc.CancelBooking(context.Background(), b.ID, tc.actorID)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				_, updated := store.statuses[b.ID]
				assert.False(t, updated)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.BookingStatusCancelled, store.statuses[b.ID])
		})
	}
}
