package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookserve/settlement/internal/domain"
)

const paymentColumns = `id, rail, reference, request_type, request_id, payer_id,
	amount, currency, pay_currency, status, provider_ref, failure_reason,
	metadata, created_at, updated_at, completed_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (
			id, rail, reference, request_type, request_id, payer_id,
			amount, currency, pay_currency, status, provider_ref, failure_reason,
			metadata, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.ID, p.Rail, p.Reference, p.RequestType, p.RequestID, p.PayerID,
		p.Amount, p.Currency, p.PayCurrency, p.Status, p.ProviderRef, p.FailureReason,
		p.Metadata, p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateRef)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) GetByReference(ctx context.Context, rail domain.PaymentRail, reference string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE rail = $1 AND reference = $2`,
		rail, reference,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	return p, nil
}

// FindByReference looks a payment up by reference alone. References are
// minted as uuids so collisions across rails do not occur in practice;
// the newest row wins if one ever does.
func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE reference = $1 ORDER BY created_at DESC LIMIT 1`,
		reference,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FindByReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FindByReference: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) GetByRequest(ctx context.Context, requestType domain.RequestType, requestID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE request_type = $1 AND request_id = $2 ORDER BY created_at`,
		requestType, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByRequest: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByRequest: scan: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByRequest: rows: %w", err)
	}
	return payments, nil
}

// ClaimTransition moves a payment into a terminal state only if it is
// still non-terminal, and reports whether this caller won the claim.
// The guarded UPDATE is the database-enforced half of the idempotency
// invariant: two near-simultaneous deliveries serialize on the row lock
// and exactly one of them sees rows > 0.
func (r *PaymentRepository) ClaimTransition(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.PaymentStatus, providerRef, failureReason *string, completedAt *time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE payments
		SET status = $2, provider_ref = COALESCE($3, provider_ref),
		    failure_reason = $4, completed_at = $5, updated_at = now()
		WHERE id = $1 AND status IN ($6, $7)`,
		id, status, providerRef, failureReason, completedAt,
		domain.PaymentStatusPending, domain.PaymentStatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("ClaimTransition: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ClaimTransition: rows affected: %w", err)
	}
	return rows > 0, nil
}

// MarkRefunded moves a completed payment to refunded. Refunds are the
// one transition out of a terminal state, and only out of completed;
// the guard keeps duplicate refund deliveries to a single application.
func (r *PaymentRepository) MarkRefunded(ctx context.Context, tx *sql.Tx, id uuid.UUID, providerRef, reason *string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE payments
		SET status = $2, provider_ref = COALESCE($3, provider_ref),
		    failure_reason = COALESCE($4, failure_reason), updated_at = now()
		WHERE id = $1 AND status = $5`,
		id, domain.PaymentStatusRefunded, providerRef, reason,
		domain.PaymentStatusCompleted,
	)
	if err != nil {
		return false, fmt.Errorf("MarkRefunded: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("MarkRefunded: rows affected: %w", err)
	}
	return rows > 0, nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	var metadata *[]byte

	err := s.Scan(
		&p.ID, &p.Rail, &p.Reference, &p.RequestType, &p.RequestID, &p.PayerID,
		&p.Amount, &p.Currency, &p.PayCurrency, &p.Status, &p.ProviderRef, &p.FailureReason,
		&metadata, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if metadata != nil {
		p.Metadata = *metadata
	}
	return &p, nil
}
