package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bookserve/settlement/internal/domain"
)

const quoteColumns = `id, request_id, total, currency, breakdown, valid_until,
	status, created_at, updated_at`

type QuoteRepository struct {
	db *sql.DB
}

func NewQuoteRepository(db *sql.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

func (r *QuoteRepository) Create(ctx context.Context, q *domain.Quote) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO service_quotes (
			id, request_id, total, currency, breakdown, valid_until, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.RequestID, q.Total, q.Currency, q.Breakdown, q.ValidUntil, q.Status,
		q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+quoteColumns+` FROM service_quotes WHERE id = $1`, id,
	)
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return q, nil
}

// GetLatestByRequest returns the newest quote for a service request;
// older superseded quotes stay on file for the audit trail.
func (r *QuoteRepository) GetLatestByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Quote, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+quoteColumns+` FROM service_quotes
		WHERE request_id = $1 ORDER BY created_at DESC LIMIT 1`,
		requestID,
	)
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetLatestByRequest: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetLatestByRequest: %w", err)
	}
	return q, nil
}

// TransitionStatus performs a guarded status move and reports whether
// the row was in the expected prior status.
func (r *QuoteRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.QuoteStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE service_quotes SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("TransitionStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("TransitionStatus: rows affected: %w", err)
	}
	return rows > 0, nil
}

func scanQuote(s scanner) (*domain.Quote, error) {
	var q domain.Quote
	var breakdown *[]byte
	err := s.Scan(
		&q.ID, &q.RequestID, &q.Total, &q.Currency, &breakdown, &q.ValidUntil,
		&q.Status, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if breakdown != nil {
		q.Breakdown = *breakdown
	}
	return &q, nil
}
