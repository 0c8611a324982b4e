package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a cached balance for one user. The cache is derived from
// the sum of completed transactions and is never written directly by
// callers; only the ledger service recomputes it inside a transaction.
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   decimal.Decimal
	Currency  Currency
	CreatedAt time.Time
	UpdatedAt time.Time
}

type WalletTransactionType string

const (
	WalletTxDeposit    WalletTransactionType = "deposit"
	WalletTxPayment    WalletTransactionType = "payment"
	WalletTxWithdrawal WalletTransactionType = "withdrawal"
	WalletTxRefund     WalletTransactionType = "refund"
)

// Effect returns the sign a transaction of this type applies to the
// balance: deposits and refunds add, payments and withdrawals subtract.
func (t WalletTransactionType) Effect() decimal.Decimal {
	switch t {
	case WalletTxDeposit, WalletTxRefund:
		return decimal.NewFromInt(1)
	default:
		return decimal.NewFromInt(-1)
	}
}

type WalletTransactionStatus string

const (
	WalletTxPending   WalletTransactionStatus = "pending"
	WalletTxCompleted WalletTransactionStatus = "completed"
	WalletTxFailed    WalletTransactionStatus = "failed"
)

func (s WalletTransactionStatus) Terminal() bool {
	return s == WalletTxCompleted || s == WalletTxFailed
}

// WalletTransaction is an immutable ledger entry. Amount carries the
// signed effect, so balance == SUM(amount) over completed entries.
type WalletTransaction struct {
	ID        uuid.UUID
	WalletID  uuid.UUID
	Type      WalletTransactionType
	Amount    decimal.Decimal
	Status    WalletTransactionStatus
	Reference string
	Narration string
	CreatedAt time.Time
	UpdatedAt time.Time
}
