package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bookserve/settlement/internal/domain"
)

const vendorColumns = `id, user_id, business_name, registration_num, nin,
	address, verifications, status, approved, created_at, updated_at`

type VendorRepository struct {
	db *sql.DB
}

func NewVendorRepository(db *sql.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

// Upsert writes the profile in one statement so the KYC orchestrator
// has a single persistence step to compensate for.
func (r *VendorRepository) Upsert(ctx context.Context, v *domain.VendorProfile) error {
	verifications, err := json.Marshal(v.Verifications)
	if err != nil {
		return fmt.Errorf("Upsert: marshal verifications: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO vendors (
			id, user_id, business_name, registration_num, nin, address,
			verifications, status, approved, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			registration_num = EXCLUDED.registration_num,
			nin = EXCLUDED.nin,
			address = EXCLUDED.address,
			verifications = EXCLUDED.verifications,
			status = EXCLUDED.status,
			approved = EXCLUDED.approved,
			updated_at = now()`,
		v.ID, v.UserID, v.BusinessName, v.RegistrationNum, v.NIN, v.Address,
		verifications, v.Status, v.Approved, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func (r *VendorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.VendorProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE user_id = $1`, userID,
	)
	v, err := scanVendor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	return v, nil
}

func scanVendor(s scanner) (*domain.VendorProfile, error) {
	var v domain.VendorProfile
	var verifications []byte
	err := s.Scan(
		&v.ID, &v.UserID, &v.BusinessName, &v.RegistrationNum, &v.NIN,
		&v.Address, &verifications, &v.Status, &v.Approved, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(verifications) > 0 {
		if err := json.Unmarshal(verifications, &v.Verifications); err != nil {
			return nil, fmt.Errorf("scanVendor: verifications: %w", err)
		}
	}
	return &v, nil
}
