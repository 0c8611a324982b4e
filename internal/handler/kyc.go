package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bookserve/settlement/internal/auth"
	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/logging"
	"github.com/bookserve/settlement/internal/service"
)

type kycService interface {
	SubmitKYC(ctx context.Context, req service.SubmitKYCRequest) (*domain.VendorProfile, error)
	GetVendor(ctx context.Context, userID uuid.UUID) (*domain.VendorProfile, error)
}

type KYCHandler struct {
	kyc kycService
}

func NewKYCHandler(kyc kycService) *KYCHandler {
	return &KYCHandler{kyc: kyc}
}

type submitKYCRequest struct {
	BusinessName    string `json:"business_name"`
	RegistrationNum string `json:"registration_number"`
	NIN             string `json:"nin"`
	Address         string `json:"address"`

	// Set by signup flows that created the auth identity in the same
	// call; a failed check then deletes that identity.
	CreatedIdentityID string `json:"created_identity_id,omitempty"`
}

func (r submitKYCRequest) Validate() []FieldError {
	var errs []FieldError

	if r.BusinessName == "" {
		errs = append(errs, FieldError{Field: "business_name", Message: "required"})
	}
	if r.RegistrationNum == "" {
		errs = append(errs, FieldError{Field: "registration_number", Message: "required"})
	}
	if r.NIN == "" {
		errs = append(errs, FieldError{Field: "nin", Message: "required"})
	} else if len(r.NIN) != 11 {
		errs = append(errs, FieldError{Field: "nin", Message: "must be 11 digits"})
	}
	if r.CreatedIdentityID != "" {
		if _, err := uuid.Parse(r.CreatedIdentityID); err != nil {
			errs = append(errs, FieldError{Field: "created_identity_id", Message: "must be a valid UUID"})
		}
	}

	return errs
}

type vendorDTO struct {
	ID            uuid.UUID                   `json:"id"`
	UserID        uuid.UUID                   `json:"user_id"`
	BusinessName  string                      `json:"business_name"`
	Status        string                      `json:"status"`
	Approved      bool                        `json:"approved"`
	Verifications []domain.VerificationResult `json:"verifications"`
	CreatedAt     time.Time                   `json:"created_at"`
}

func toVendorDTO(v *domain.VendorProfile) vendorDTO {
	return vendorDTO{
		ID:            v.ID,
		UserID:        v.UserID,
		BusinessName:  v.BusinessName,
		Status:        string(v.Status),
		Approved:      v.Approved,
		Verifications: v.Verifications,
		CreatedAt:     v.CreatedAt,
	}
}

func (h *KYCHandler) Submit(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req submitKYCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	submit := service.SubmitKYCRequest{
		UserID:          principal.UserID,
		BusinessName:    req.BusinessName,
		RegistrationNum: req.RegistrationNum,
		NIN:             req.NIN,
		Address:         req.Address,
	}
	if req.CreatedIdentityID != "" {
		id, _ := uuid.Parse(req.CreatedIdentityID)
		submit.CreatedIdentityID = &id
	}

	profile, err := h.kyc.SubmitKYC(r.Context(), submit)
	if err != nil {
		log.Warn("kyc submission rejected", "user_id", principal.UserID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toVendorDTO(profile))
}

func (h *KYCHandler) GetVendor(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	v, err := h.kyc.GetVendor(r.Context(), principal.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toVendorDTO(v))
}
