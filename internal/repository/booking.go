package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bookserve/settlement/internal/domain"
)

const bookingColumns = `id, resource_id, guest_id, check_in, check_out, status,
	amount, currency, created_at, updated_at`

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts the booking. The bookings table carries an exclusion
// constraint over (resource_id, daterange) for slot-holding statuses, so
// the loser of a concurrent insert race surfaces as ErrBookingConflict
// here regardless of what the upstream availability read said.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (
			id, resource_id, guest_id, check_in, check_out, status,
			amount, currency, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.ResourceID, b.GuestID, b.CheckIn, b.CheckOut, b.Status,
		b.Amount, b.Currency, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrBookingConflict)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id,
	)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return b, nil
}

// FindOverlapping returns slot-holding bookings whose half-open range
// intersects [checkIn, checkOut). Statuses in exclude are skipped on
// top of the released (cancelled/failed) ones.
func (r *BookingRepository) FindOverlapping(ctx context.Context, resourceID uuid.UUID, checkIn, checkOut time.Time, exclude []domain.BookingStatus) ([]domain.Booking, error) {
	excluded := []string{string(domain.BookingStatusCancelled), string(domain.BookingStatusFailed)}
	for _, s := range exclude {
		excluded = append(excluded, string(s))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE resource_id = $1
		  AND check_in < $3 AND check_out > $2
		  AND status != ALL($4)
		ORDER BY check_in`,
		resourceID, checkIn, checkOut, pq.Array(excluded),
	)
	if err != nil {
		return nil, fmt.Errorf("FindOverlapping: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("FindOverlapping: scan: %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindOverlapping: rows: %w", err)
	}
	return bookings, nil
}

// MarkConfirmed transitions pending_payment -> confirmed and reports
// whether this call performed the transition. Guarding on the prior
// status keeps the reconciler and the manual verify path idempotent.
func (r *BookingRepository) MarkConfirmed(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		domain.BookingStatusConfirmed, id, domain.BookingStatusPendingPayment,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return false, fmt.Errorf("MarkConfirmed: %w", domain.ErrBookingConflict)
		}
		return false, fmt.Errorf("MarkConfirmed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("MarkConfirmed: rows affected: %w", err)
	}
	return rows > 0, nil
}

// MarkFailed transitions pending_payment -> failed. A booking confirmed
// through another payment attempt is never overridden.
func (r *BookingRepository) MarkFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		domain.BookingStatusFailed, id, domain.BookingStatusPendingPayment,
	)
	if err != nil {
		return false, fmt.Errorf("MarkFailed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("MarkFailed: rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func scanBooking(s scanner) (*domain.Booking, error) {
	var b domain.Booking
	err := s.Scan(
		&b.ID, &b.ResourceID, &b.GuestID, &b.CheckIn, &b.CheckOut, &b.Status,
		&b.Amount, &b.Currency, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
