package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookserve/settlement/internal/domain"
)

func SeedBooking(t *testing.T, db *sql.DB, resourceID, guestID uuid.UUID, checkIn, checkOut time.Time, status domain.BookingStatus, amount decimal.Decimal) *domain.Booking {
	t.Helper()

	now := time.Now().UTC()
	b := &domain.Booking{
		ID:         uuid.New(),
		ResourceID: resourceID,
		GuestID:    guestID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Status:     status,
		Amount:     amount,
		Currency:   domain.CurrencyNGN,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := db.Exec(
		`INSERT INTO bookings (id, resource_id, guest_id, check_in, check_out, status, amount, currency, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.ResourceID, b.GuestID, b.CheckIn, b.CheckOut, b.Status, b.Amount, b.Currency, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func SeedWallet(t *testing.T, db *sql.DB, userID uuid.UUID) *domain.Wallet {
	t.Helper()

	now := time.Now().UTC()
	w := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  domain.CurrencyNGN,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.Exec(
		`INSERT INTO wallets (id, user_id, balance, currency, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, w.UserID, w.Balance, w.Currency, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return w
}

// SeedWalletTransaction inserts a ledger entry directly; amount carries
// the signed effect just like the service writes it.
func SeedWalletTransaction(t *testing.T, db *sql.DB, walletID uuid.UUID, txType domain.WalletTransactionType, amount decimal.Decimal, status domain.WalletTransactionStatus) *domain.WalletTransaction {
	t.Helper()

	now := time.Now().UTC()
	entry := &domain.WalletTransaction{
		ID:        uuid.New(),
		WalletID:  walletID,
		Type:      txType,
		Amount:    amount.Mul(txType.Effect()),
		Status:    status,
		Reference: "BSV-" + uuid.NewString(),
		Narration: "seeded",
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.Exec(
		`INSERT INTO wallet_transactions (id, wallet_id, type, amount, status, reference, narration, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.WalletID, entry.Type, entry.Amount, entry.Status, entry.Reference, entry.Narration, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed wallet transaction: %v", err)
	}
	return entry
}

func SeedPayment(t *testing.T, db *sql.DB, rail domain.PaymentRail, reference string, requestType domain.RequestType, requestID, payerID uuid.UUID, amount decimal.Decimal, status domain.PaymentStatus) *domain.Payment {
	t.Helper()

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:          uuid.New(),
		Rail:        rail,
		Reference:   reference,
		RequestType: requestType,
		RequestID:   requestID,
		PayerID:     payerID,
		Amount:      amount,
		Currency:    domain.CurrencyNGN,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := db.Exec(
		`INSERT INTO payments (id, rail, reference, request_type, request_id, payer_id, amount, currency, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Rail, p.Reference, p.RequestType, p.RequestID, p.PayerID, p.Amount, p.Currency, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return p
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
