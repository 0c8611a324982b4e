package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookserve/settlement/internal/auth"
	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/logging"
	"github.com/bookserve/settlement/internal/service"
)

type quoteService interface {
	CreateServiceRequest(ctx context.Context, in service.CreateServiceRequestInput) (*domain.ServiceRequest, error)
	GetServiceRequest(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error)
	CreateQuote(ctx context.Context, in service.CreateQuoteInput) (*domain.Quote, error)
	SendQuote(ctx context.Context, quoteID, vendorID uuid.UUID) (*domain.Quote, error)
	AcceptQuote(ctx context.Context, quoteID, requesterID uuid.UUID) (*domain.Quote, error)
	GetQuote(ctx context.Context, id uuid.UUID) (*domain.Quote, error)
}

type QuoteHandler struct {
	quotes quoteService
}

func NewQuoteHandler(quotes quoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

type createServiceRequestRequest struct {
	VendorID string          `json:"vendor_id"`
	Vertical string          `json:"vertical"`
	Details  json.RawMessage `json:"details,omitempty"`
}

func (r createServiceRequestRequest) Validate() []FieldError {
	var errs []FieldError

	if r.VendorID == "" {
		errs = append(errs, FieldError{Field: "vendor_id", Message: "required"})
	} else if _, err := uuid.Parse(r.VendorID); err != nil {
		errs = append(errs, FieldError{Field: "vendor_id", Message: "must be a valid UUID"})
	}

	if r.Vertical == "" {
		errs = append(errs, FieldError{Field: "vertical", Message: "required"})
	} else if v := domain.ServiceVertical(r.Vertical); v != domain.VerticalLogistics && v != domain.VerticalSecurity {
		errs = append(errs, FieldError{Field: "vertical", Message: "must be logistics or security"})
	}

	return errs
}

type serviceRequestDTO struct {
	ID        uuid.UUID       `json:"id"`
	Vertical  string          `json:"vertical"`
	VendorID  uuid.UUID       `json:"vendor_id"`
	Details   json.RawMessage `json:"details,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func toServiceRequestDTO(req *domain.ServiceRequest) serviceRequestDTO {
	return serviceRequestDTO{
		ID:        req.ID,
		Vertical:  string(req.Vertical),
		VendorID:  req.VendorID,
		Details:   req.Details,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt,
	}
}

type quoteDTO struct {
	ID         uuid.UUID       `json:"id"`
	RequestID  uuid.UUID       `json:"request_id"`
	Total      string          `json:"total"`
	Currency   string          `json:"currency"`
	Breakdown  json.RawMessage `json:"breakdown,omitempty"`
	ValidUntil time.Time       `json:"valid_until"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toQuoteDTO(q *domain.Quote) quoteDTO {
	return quoteDTO{
		ID:         q.ID,
		RequestID:  q.RequestID,
		Total:      q.Total.StringFixed(2),
		Currency:   string(q.Currency),
		Breakdown:  q.Breakdown,
		ValidUntil: q.ValidUntil,
		Status:     string(q.EffectiveStatus(time.Now().UTC())),
		CreatedAt:  q.CreatedAt,
	}
}

func (h *QuoteHandler) CreateServiceRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createServiceRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	vendorID, _ := uuid.Parse(req.VendorID)
	sr, err := h.quotes.CreateServiceRequest(r.Context(), service.CreateServiceRequestInput{
		RequesterID: principal.UserID,
		VendorID:    vendorID,
		Vertical:    domain.ServiceVertical(req.Vertical),
		Details:     req.Details,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toServiceRequestDTO(sr))
}

func (h *QuoteHandler) GetServiceRequest(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	sr, err := h.quotes.GetServiceRequest(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toServiceRequestDTO(sr))
}

type createQuoteRequest struct {
	RequestID  string          `json:"request_id"`
	Total      string          `json:"total"`
	Currency   string          `json:"currency"`
	Breakdown  json.RawMessage `json:"breakdown,omitempty"`
	ValidUntil string          `json:"valid_until"`
}

func (r createQuoteRequest) Validate() []FieldError {
	var errs []FieldError

	if r.RequestID == "" {
		errs = append(errs, FieldError{Field: "request_id", Message: "required"})
	} else if _, err := uuid.Parse(r.RequestID); err != nil {
		errs = append(errs, FieldError{Field: "request_id", Message: "must be a valid UUID"})
	}

	if r.Total == "" {
		errs = append(errs, FieldError{Field: "total", Message: "required"})
	} else if amt, err := decimal.NewFromString(r.Total); err != nil || !amt.IsPositive() {
		errs = append(errs, FieldError{Field: "total", Message: "must be a positive decimal"})
	}

	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be NGN or USD"})
	}

	if r.ValidUntil == "" {
		errs = append(errs, FieldError{Field: "valid_until", Message: "required"})
	} else if _, err := time.Parse(time.RFC3339, r.ValidUntil); err != nil {
		errs = append(errs, FieldError{Field: "valid_until", Message: "must be RFC3339"})
	}

	return errs
}

func (h *QuoteHandler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	requestID, _ := uuid.Parse(req.RequestID)
	total, _ := decimal.NewFromString(req.Total)
	validUntil, _ := time.Parse(time.RFC3339, req.ValidUntil)

	q, err := h.quotes.CreateQuote(r.Context(), service.CreateQuoteInput{
		RequestID:  requestID,
		VendorID:   principal.UserID,
		Total:      total,
		Currency:   domain.Currency(req.Currency),
		Breakdown:  req.Breakdown,
		ValidUntil: validUntil,
	})
	if err != nil {
		log.Warn("quote creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toQuoteDTO(q))
}

func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	q, err := h.quotes.SendQuote(r.Context(), id, principal.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toQuoteDTO(q))
}

func (h *QuoteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	q, err := h.quotes.AcceptQuote(r.Context(), id, principal.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toQuoteDTO(q))
}

func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	q, err := h.quotes.GetQuote(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toQuoteDTO(q))
}
