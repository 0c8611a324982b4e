package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/repository"
	"github.com/bookserve/settlement/internal/testutil"
)

func newBooking(resourceID uuid.UUID, checkIn, checkOut time.Time, status domain.BookingStatus) *domain.Booking {
	now := time.Now().UTC()
	return &domain.Booking{
		ID:         uuid.New(),
		ResourceID: resourceID,
		GuestID:    uuid.New(),
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Status:     status,
		Amount:     decimal.NewFromInt(50000),
		Currency:   domain.CurrencyNGN,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestBookingCreate_ExclusionConstraint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewBookingRepository(db)
	ctx := context.Background()
	resourceID := uuid.New()

	existing := newBooking(resourceID, testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15), domain.BookingStatusPendingPayment)
	require.NoError(t, repo.Create(ctx, existing))

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		wantErr  error
	}{
		{"overlapping range rejected", testutil.Date(2026, 3, 12), testutil.Date(2026, 3, 18), domain.ErrBookingConflict},
		{"identical range rejected", testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15), domain.ErrBookingConflict},
		{"checkout on existing checkin is fine", testutil.Date(2026, 3, 5), testutil.Date(2026, 3, 10), nil},
		{"checkin on existing checkout is fine", testutil.Date(2026, 3, 15), testutil.Date(2026, 3, 20), nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.Create(ctx, newBooking(resourceID, tc.checkIn, tc.checkOut, domain.BookingStatusPendingPayment))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBookingCreate_OtherResourceUnaffected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewBookingRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newBooking(uuid.New(), testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15), domain.BookingStatusPendingPayment)))
	require.NoError(t, repo.Create(ctx, newBooking(uuid.New(), testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15), domain.BookingStatusPendingPayment)))
}

func TestBookingCreate_ReleasedSlotReusable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewBookingRepository(db)
	ctx := context.Background()
	resourceID := uuid.New()

	cancelled := newBooking(resourceID, testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15), domain.BookingStatusCancelled)
	require.NoError(t, repo.Create(ctx, cancelled))
	failed := newBooking(resourceID, testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15), domain.BookingStatusFailed)
	require.NoError(t, repo.Create(ctx, failed))

	fresh := newBooking(resourceID, testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15), domain.BookingStatusPendingPayment)
	require.NoError(t, repo.Create(ctx, fresh), "cancelled and failed bookings do not hold the slot")
}

func TestFindOverlapping(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewBookingRepository(db)
	ctx := context.Background()
	resourceID := uuid.New()

	held := testutil.SeedBooking(t, db, resourceID, uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusConfirmed, decimal.NewFromInt(50000))
	testutil.SeedBooking(t, db, resourceID, uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusCancelled, decimal.NewFromInt(50000))

	conflicts, err := repo.FindOverlapping(ctx, resourceID, testutil.Date(2026, 3, 12), testutil.Date(2026, 3, 18), nil)
	require.NoError(t, err)
	require.Len(t, conflicts, 1, "released bookings are not conflicts")
	assert.Equal(t, held.ID, conflicts[0].ID)

	backToBack, err := repo.FindOverlapping(ctx, resourceID, testutil.Date(2026, 3, 15), testutil.Date(2026, 3, 20), nil)
	require.NoError(t, err)
	assert.Empty(t, backToBack, "half-open ranges: checkout day is free for the next checkin")
}

func TestMarkConfirmed_GuardsPriorStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewBookingRepository(db)
	ctx := context.Background()

	b := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	moved, err := repo.MarkConfirmed(ctx, tx, b.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.True(t, moved)

	// Second transition finds no pending_payment row to move.
	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	moved, err = repo.MarkConfirmed(ctx, tx, b.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.False(t, moved)
}

func TestMarkFailed_NeverOverridesConfirmed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewBookingRepository(db)
	ctx := context.Background()

	b := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusConfirmed, decimal.NewFromInt(50000))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	moved, err := repo.MarkFailed(ctx, tx, b.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.False(t, moved)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
}
