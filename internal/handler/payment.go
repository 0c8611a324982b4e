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

type paymentService interface {
	InitializePayment(ctx context.Context, req service.InitializePaymentRequest) (*service.PaymentIntentResult, error)
	GetPayment(ctx context.Context, reference string) (*domain.Payment, error)
	CheckRequestStatus(ctx context.Context, requestType domain.RequestType, requestID uuid.UUID) (*service.RequestPaymentStatus, error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type initializePaymentRequest struct {
	RequestType string `json:"request_type"`
	RequestID   string `json:"request_id"`
	Rail        string `json:"rail"`
	Amount      string `json:"amount"`
	PayCurrency string `json:"pay_currency,omitempty"`
}

func (r initializePaymentRequest) Validate() []FieldError {
	var errs []FieldError

	if r.RequestType == "" {
		errs = append(errs, FieldError{Field: "request_type", Message: "required"})
	} else if !domain.RequestType(r.RequestType).IsValid() {
		errs = append(errs, FieldError{Field: "request_type", Message: "must be booking, service_request, wallet_deposit, or wallet_withdrawal"})
	}

	if r.RequestID == "" {
		errs = append(errs, FieldError{Field: "request_id", Message: "required"})
	} else if _, err := uuid.Parse(r.RequestID); err != nil {
		errs = append(errs, FieldError{Field: "request_id", Message: "must be a valid UUID"})
	}

	if r.Rail == "" {
		errs = append(errs, FieldError{Field: "rail", Message: "required"})
	} else if !domain.PaymentRail(r.Rail).IsValid() {
		errs = append(errs, FieldError{Field: "rail", Message: "must be card, crypto, or wallet"})
	}

	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if amt, err := decimal.NewFromString(r.Amount); err != nil || !amt.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive decimal"})
	}

	if domain.PaymentRail(r.Rail) == domain.RailCrypto && r.PayCurrency == "" {
		errs = append(errs, FieldError{Field: "pay_currency", Message: "required for the crypto rail"})
	}

	return errs
}

type paymentDTO struct {
	ID            uuid.UUID  `json:"id"`
	Rail          string     `json:"rail"`
	Reference     string     `json:"reference"`
	RequestType   string     `json:"request_type"`
	RequestID     uuid.UUID  `json:"request_id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	PayCurrency   *string    `json:"pay_currency,omitempty"`
	Status        string     `json:"status"`
	ProviderRef   *string    `json:"provider_ref,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	return paymentDTO{
		ID:            p.ID,
		Rail:          string(p.Rail),
		Reference:     p.Reference,
		RequestType:   string(p.RequestType),
		RequestID:     p.RequestID,
		Amount:        p.Amount.StringFixed(2),
		Currency:      string(p.Currency),
		PayCurrency:   p.PayCurrency,
		Status:        string(p.Status),
		ProviderRef:   p.ProviderRef,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		CompletedAt:   p.CompletedAt,
	}
}

type intentDTO struct {
	Payment     paymentDTO `json:"payment"`
	ClientToken string     `json:"client_token,omitempty"`
	RedirectURL string     `json:"redirect_url,omitempty"`
	PayCurrency string     `json:"pay_currency,omitempty"`
	PayAmount   string     `json:"pay_amount,omitempty"`
}

func (h *PaymentHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req initializePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)
	requestID, _ := uuid.Parse(req.RequestID)

	result, err := h.payments.InitializePayment(r.Context(), service.InitializePaymentRequest{
		ActorID:       principal.UserID,
		RequestType:   domain.RequestType(req.RequestType),
		RequestID:     requestID,
		Rail:          domain.PaymentRail(req.Rail),
		Amount:        amount,
		PayCurrency:   req.PayCurrency,
		CustomerEmail: principal.Email,
	})
	if err != nil {
		log.Warn("payment initialization failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dto := intentDTO{
		Payment:     toPaymentDTO(result.Payment),
		ClientToken: result.Intent.ClientToken,
		RedirectURL: result.Intent.RedirectURL,
		PayCurrency: result.Intent.PayCurrency,
	}
	if !result.Intent.PayAmount.IsZero() {
		dto.PayAmount = result.Intent.PayAmount.String()
	}
	RespondSuccess(w, http.StatusCreated, dto)
}

type checkStatusRequest struct {
	RequestType string `json:"request_type"`
	RequestID   string `json:"request_id"`
}

func (r checkStatusRequest) Validate() []FieldError {
	var errs []FieldError

	if r.RequestType == "" {
		errs = append(errs, FieldError{Field: "request_type", Message: "required"})
	} else if !domain.RequestType(r.RequestType).IsValid() {
		errs = append(errs, FieldError{Field: "request_type", Message: "must be booking, service_request, wallet_deposit, or wallet_withdrawal"})
	}

	if r.RequestID == "" {
		errs = append(errs, FieldError{Field: "request_id", Message: "required"})
	} else if _, err := uuid.Parse(r.RequestID); err != nil {
		errs = append(errs, FieldError{Field: "request_id", Message: "must be a valid UUID"})
	}

	return errs
}

// CheckStatus answers "is this request paid" keyed by the request, not
// the reference; clients that lost their reference after a redirect
// still get a usable answer.
func (h *PaymentHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req checkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	requestID, _ := uuid.Parse(req.RequestID)
	status, err := h.payments.CheckRequestStatus(r.Context(), domain.RequestType(req.RequestType), requestID)
	if err != nil {
		log.Warn("payment status check failed", "request_type", req.RequestType, "request_id", req.RequestID, "error", err)
		RespondDomainError(w, err)
		return
	}

	dto := requestStatusDTO{HasPaid: status.HasPaid, HasPending: status.HasPending}
	if status.Payment != nil {
		p := toPaymentDTO(status.Payment)
		dto.Payment = &p
	}
	RespondSuccess(w, http.StatusOK, dto)
}

func (h *PaymentHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	reference := r.PathValue("reference")
	if reference == "" {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.GetPayment(r.Context(), reference)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "reference", reference, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

type requestStatusDTO struct {
	HasPaid    bool        `json:"has_paid"`
	HasPending bool        `json:"has_pending"`
	Payment    *paymentDTO `json:"payment,omitempty"`
}

// GetRequestStatus answers "is this booking or request paid" for a
// client that lost track of its payment attempt.
func (h *PaymentHandler) GetRequestStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	requestType := domain.RequestType(r.PathValue("type"))
	if !requestType.IsValid() {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	status, err := h.payments.CheckRequestStatus(r.Context(), requestType, requestID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dto := requestStatusDTO{HasPaid: status.HasPaid, HasPending: status.HasPending}
	if status.Payment != nil {
		p := toPaymentDTO(status.Payment)
		dto.Payment = &p
	}
	RespondSuccess(w, http.StatusOK, dto)
}
