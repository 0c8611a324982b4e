package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/logging"
)

// CheckOutcome is one external verifier's answer for a submitted
// credential.
type CheckOutcome struct {
	Passed    bool
	MatchedAs string
	Reason    string
}

type businessRegistry interface {
	VerifyBusiness(ctx context.Context, registrationNum, businessName string) (*CheckOutcome, error)
}

type ninVerifier interface {
	VerifyNIN(ctx context.Context, nin string) (*CheckOutcome, error)
}

// identityAdmin deletes a provisional identity in the auth backend when
// onboarding has to be unwound.
type identityAdmin interface {
	DeleteIdentity(ctx context.Context, identityID uuid.UUID) error
}

type vendorRepo interface {
	Upsert(ctx context.Context, v *domain.VendorProfile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.VendorProfile, error)
}

// KYCService runs vendor onboarding checks serially against external
// verifiers. Nothing is persisted until every check passes, so a failed
// check leaves no partial profile behind.
type KYCService struct {
	registry businessRegistry
	nin      ninVerifier
	identity identityAdmin
	vendors  vendorRepo
	notifier Notifier
}

func NewKYCService(registry businessRegistry, nin ninVerifier, identity identityAdmin, vendors vendorRepo, notifier Notifier) *KYCService {
	return &KYCService{
		registry: registry,
		nin:      nin,
		identity: identity,
		vendors:  vendors,
		notifier: notifier,
	}
}

type SubmitKYCRequest struct {
	UserID          uuid.UUID
	BusinessName    string
	RegistrationNum string
	NIN             string
	Address         string

	// CreatedIdentityID is set when this submission also created the
	// identity in the auth backend. A failed check then deletes that
	// identity; an identity that predates the submission is never
	// touched.
	CreatedIdentityID *uuid.UUID
}

// SubmitKYC verifies the business registration, then the national ID,
// in that order. The first failure short-circuits, compensates, and
// reports which check failed and why.
func (s *KYCService) SubmitKYC(ctx context.Context, req SubmitKYCRequest) (*domain.VendorProfile, error) {
	log := logging.FromContext(ctx)

	if req.BusinessName == "" || req.RegistrationNum == "" || req.NIN == "" {
		return nil, fmt.Errorf("SubmitKYC: %w", domain.ErrValidation)
	}

	var verifications []domain.VerificationResult

	cac, err := s.registry.VerifyBusiness(ctx, req.RegistrationNum, req.BusinessName)
	if err != nil {
		s.compensate(ctx, req)
		return nil, fmt.Errorf("SubmitKYC: %w", &domain.VerificationError{Check: "cac", Reason: "registry unavailable", Err: err})
	}
	if !cac.Passed {
		s.compensate(ctx, req)
		return nil, fmt.Errorf("SubmitKYC: %w", &domain.VerificationError{Check: "cac", Reason: cac.Reason})
	}
	verifications = append(verifications, domain.VerificationResult{
		Check:      "cac",
		Passed:     true,
		MatchedAs:  cac.MatchedAs,
		VerifiedAt: time.Now().UTC(),
	})

	nin, err := s.nin.VerifyNIN(ctx, req.NIN)
	if err != nil {
		s.compensate(ctx, req)
		return nil, fmt.Errorf("SubmitKYC: %w", &domain.VerificationError{Check: "nin", Reason: "lookup unavailable", Err: err})
	}
	if !nin.Passed {
		s.compensate(ctx, req)
		return nil, fmt.Errorf("SubmitKYC: %w", &domain.VerificationError{Check: "nin", Reason: nin.Reason})
	}
	verifications = append(verifications, domain.VerificationResult{
		Check:      "nin",
		Passed:     true,
		MatchedAs:  nin.MatchedAs,
		VerifiedAt: time.Now().UTC(),
	})

	now := time.Now().UTC()
	profile := &domain.VendorProfile{
		ID:              uuid.New(),
		UserID:          req.UserID,
		BusinessName:    req.BusinessName,
		RegistrationNum: req.RegistrationNum,
		NIN:             req.NIN,
		Address:         req.Address,
		Verifications:   verifications,
		Status:          domain.VendorStatusApproved,
		Approved:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.vendors.Upsert(ctx, profile); err != nil {
		s.compensate(ctx, req)
		return nil, fmt.Errorf("SubmitKYC: %w", err)
	}

	log.Info("vendor KYC approved", "user_id", req.UserID, "checks", len(verifications))
	s.notifier.VendorSubmitted(ctx, profile)
	return profile, nil
}

// compensate unwinds the identity created for this submission. Best
// effort: a delete failure is logged for the reconciliation queue, not
// returned, because the caller already has the real error to report.
func (s *KYCService) compensate(ctx context.Context, req SubmitKYCRequest) {
	if req.CreatedIdentityID == nil {
		return
	}
	if err := s.identity.DeleteIdentity(ctx, *req.CreatedIdentityID); err != nil {
		logging.FromContext(ctx).Error("identity compensation failed",
			"identity_id", *req.CreatedIdentityID, "user_id", req.UserID, "error", err)
	}
}

func (s *KYCService) GetVendor(ctx context.Context, userID uuid.UUID) (*domain.VendorProfile, error) {
	v, err := s.vendors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetVendor: %w", err)
	}
	return v, nil
}
