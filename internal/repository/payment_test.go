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

func TestPaymentCreate_DuplicateReference(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	reference := "BSV-" + uuid.NewString()
	testutil.SeedPayment(t, db, domain.RailCard, reference, domain.RequestTypeBooking,
		uuid.New(), uuid.New(), decimal.NewFromInt(50000), domain.PaymentStatusPending)

	now := time.Now().UTC()
	dup := &domain.Payment{
		ID:          uuid.New(),
		Rail:        domain.RailCard,
		Reference:   reference,
		RequestType: domain.RequestTypeBooking,
		RequestID:   uuid.New(),
		PayerID:     uuid.New(),
		Amount:      decimal.NewFromInt(50000),
		Currency:    domain.CurrencyNGN,
		Status:      domain.PaymentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.Create(ctx, tx, dup)
	require.ErrorIs(t, err, domain.ErrDuplicateRef)
}

func TestClaimTransition_FirstWriterWins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	p := testutil.SeedPayment(t, db, domain.RailCard, "BSV-"+uuid.NewString(),
		domain.RequestTypeBooking, uuid.New(), uuid.New(),
		decimal.NewFromInt(50000), domain.PaymentStatusPending)

	now := time.Now().UTC()
	ref := "prov_1"

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	claimed, err := repo.ClaimTransition(ctx, tx, p.ID, domain.PaymentStatusCompleted, &ref, nil, &now)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.True(t, claimed)

	reason := "late failure"
	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	claimed, err = repo.ClaimTransition(ctx, tx, p.ID, domain.PaymentStatusFailed, nil, &reason, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.False(t, claimed, "terminal payments never transition again")

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.FailureReason)
}

func TestMarkRefunded_OnlyFromCompleted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	pending := testutil.SeedPayment(t, db, domain.RailCard, "BSV-"+uuid.NewString(),
		domain.RequestTypeBooking, uuid.New(), uuid.New(),
		decimal.NewFromInt(50000), domain.PaymentStatusPending)
	completed := testutil.SeedPayment(t, db, domain.RailCard, "BSV-"+uuid.NewString(),
		domain.RequestTypeBooking, uuid.New(), uuid.New(),
		decimal.NewFromInt(50000), domain.PaymentStatusCompleted)

	ref := "prov_refund_1"

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	moved, err := repo.MarkRefunded(ctx, tx, pending.ID, &ref, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.False(t, moved, "a pending payment has nothing to refund")

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	moved, err = repo.MarkRefunded(ctx, tx, completed.ID, &ref, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.True(t, moved)

	// Second application finds the row already refunded.
	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	moved, err = repo.MarkRefunded(ctx, tx, completed.ID, &ref, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.False(t, moved)

	got, err := repo.GetByID(ctx, completed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, got.Status)
}

func TestFindByReference(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	_, err := repo.FindByReference(ctx, "BSV-missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	p := testutil.SeedPayment(t, db, domain.RailCrypto, "BSV-"+uuid.NewString(),
		domain.RequestTypeWalletDeposit, uuid.New(), uuid.New(),
		decimal.NewFromInt(2000), domain.PaymentStatusCompleted)

	got, err := repo.FindByReference(ctx, p.Reference)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, domain.RailCrypto, got.Rail)
}
