package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookserve/settlement/internal/domain"
)

const walletTxColumns = `id, wallet_id, type, amount, status, reference,
	narration, created_at, updated_at`

type WalletTransactionRepository struct {
	db *sql.DB
}

func NewWalletTransactionRepository(db *sql.DB) *WalletTransactionRepository {
	return &WalletTransactionRepository{db: db}
}

func (r *WalletTransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.WalletTransaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (
			id, wallet_id, type, amount, status, reference, narration,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.WalletID, t.Type, t.Amount, t.Status, t.Reference, t.Narration,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateRef)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WalletTransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.WalletTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletTxColumns+` FROM wallet_transactions WHERE reference = $1`,
		reference,
	)
	t, err := scanWalletTx(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	return t, nil
}

func (r *WalletTransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`, walletID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByWallet: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+walletTxColumns+` FROM wallet_transactions
		WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		walletID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByWallet: %w", err)
	}
	defer rows.Close()

	var txs []domain.WalletTransaction
	for rows.Next() {
		t, err := scanWalletTx(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByWallet: scan: %w", err)
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByWallet: rows: %w", err)
	}
	return txs, total, nil
}

// SumCompleted re-derives the balance from the ledger itself. Callers
// hold the wallet row lock, so the sum cannot move under them.
func (r *WalletTransactionRepository) SumCompleted(ctx context.Context, tx *sql.Tx, walletID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions
		WHERE wallet_id = $1 AND status = $2`,
		walletID, domain.WalletTxCompleted,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumCompleted: %w", err)
	}
	return sum, nil
}

// SumPendingWithdrawals returns the (negative) total reserved by
// in-flight withdrawals; available funds = completed sum + this value.
func (r *WalletTransactionRepository) SumPendingWithdrawals(ctx context.Context, tx *sql.Tx, walletID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions
		WHERE wallet_id = $1 AND status = $2 AND type = $3`,
		walletID, domain.WalletTxPending, domain.WalletTxWithdrawal,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumPendingWithdrawals: %w", err)
	}
	return sum, nil
}

// Finalize moves a pending entry to a terminal status and reports
// whether this call performed the transition.
func (r *WalletTransactionRepository) Finalize(ctx context.Context, tx *sql.Tx, reference string, status domain.WalletTransactionStatus) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallet_transactions SET status = $1, updated_at = now()
		WHERE reference = $2 AND status = $3`,
		status, reference, domain.WalletTxPending,
	)
	if err != nil {
		return false, fmt.Errorf("Finalize: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Finalize: rows affected: %w", err)
	}
	return rows > 0, nil
}

type WalletStatistics struct {
	TotalDeposits    decimal.Decimal
	TotalPayments    decimal.Decimal
	TotalWithdrawals decimal.Decimal
	TotalRefunds     decimal.Decimal
	TransactionCount int
}

func (r *WalletTransactionRepository) Statistics(ctx context.Context, walletID uuid.UUID) (*WalletStatistics, error) {
	var s WalletStatistics
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'deposit'), 0),
			COALESCE(SUM(-amount) FILTER (WHERE type = 'payment'), 0),
			COALESCE(SUM(-amount) FILTER (WHERE type = 'withdrawal'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'refund'), 0),
			COUNT(*)
		FROM wallet_transactions
		WHERE wallet_id = $1 AND status = $2`,
		walletID, domain.WalletTxCompleted,
	).Scan(&s.TotalDeposits, &s.TotalPayments, &s.TotalWithdrawals, &s.TotalRefunds, &s.TransactionCount)
	if err != nil {
		return nil, fmt.Errorf("Statistics: %w", err)
	}
	return &s, nil
}

func scanWalletTx(s scanner) (*domain.WalletTransaction, error) {
	var t domain.WalletTransaction
	err := s.Scan(
		&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Status, &t.Reference,
		&t.Narration, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
