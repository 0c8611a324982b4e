package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bookserve/settlement/internal/domain"
)

const serviceRequestColumns = `id, vertical, requester_id, vendor_id, details,
	status, created_at, updated_at`

type ServiceRequestRepository struct {
	db *sql.DB
}

func NewServiceRequestRepository(db *sql.DB) *ServiceRequestRepository {
	return &ServiceRequestRepository{db: db}
}

func (r *ServiceRequestRepository) Create(ctx context.Context, req *domain.ServiceRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO service_requests (
			id, vertical, requester_id, vendor_id, details, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, req.Vertical, req.RequesterID, req.VendorID, req.Details, req.Status,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *ServiceRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serviceRequestColumns+` FROM service_requests WHERE id = $1`, id,
	)
	req, err := scanServiceRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return req, nil
}

// MarkPaid transitions quoted -> paid, reporting whether this call did
// it; same idempotency shape as BookingRepository.MarkConfirmed.
func (r *ServiceRequestRepository) MarkPaid(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE service_requests SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		domain.ServiceRequestStatusPaid, id, domain.ServiceRequestStatusQuoted,
	)
	if err != nil {
		return false, fmt.Errorf("MarkPaid: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("MarkPaid: rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *ServiceRequestRepository) MarkFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE service_requests SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		domain.ServiceRequestStatusFailed, id, domain.ServiceRequestStatusQuoted,
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

func (r *ServiceRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ServiceRequestStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE service_requests SET status = $1, updated_at = now() WHERE id = $2`,
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

func scanServiceRequest(s scanner) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	var details *[]byte
	err := s.Scan(
		&req.ID, &req.Vertical, &req.RequesterID, &req.VendorID, &details,
		&req.Status, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if details != nil {
		req.Details = *details
	}
	return &req, nil
}
