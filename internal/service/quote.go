package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/logging"
)

type quoteRepo interface {
	Create(ctx context.Context, q *domain.Quote) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error)
	GetLatestByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Quote, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.QuoteStatus) (bool, error)
}

type quoteServiceRequestRepo interface {
	Create(ctx context.Context, req *domain.ServiceRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ServiceRequestStatus) error
}

// QuoteService drives the quoted-service flow: a requester opens a
// request, a vendor prices it, the requester accepts, and the accepted
// quote becomes the authoritative amount for payment.
type QuoteService struct {
	quotes   quoteRepo
	requests quoteServiceRequestRepo
}

func NewQuoteService(quotes quoteRepo, requests quoteServiceRequestRepo) *QuoteService {
	return &QuoteService{quotes: quotes, requests: requests}
}

type CreateServiceRequestInput struct {
	RequesterID uuid.UUID
	VendorID    uuid.UUID
	Vertical    domain.ServiceVertical
	Details     json.RawMessage
}

func (s *QuoteService) CreateServiceRequest(ctx context.Context, in CreateServiceRequestInput) (*domain.ServiceRequest, error) {
	if in.Vertical != domain.VerticalLogistics && in.Vertical != domain.VerticalSecurity {
		return nil, fmt.Errorf("CreateServiceRequest: vertical %q: %w", in.Vertical, domain.ErrValidation)
	}

	now := time.Now().UTC()
	req := &domain.ServiceRequest{
		ID:          uuid.New(),
		Vertical:    in.Vertical,
		RequesterID: in.RequesterID,
		VendorID:    in.VendorID,
		Details:     in.Details,
		Status:      domain.ServiceRequestStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("CreateServiceRequest: %w", err)
	}
	return req, nil
}

func (s *QuoteService) GetServiceRequest(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetServiceRequest: %w", err)
	}
	return req, nil
}

type CreateQuoteInput struct {
	RequestID  uuid.UUID
	VendorID   uuid.UUID
	Total      decimal.Decimal
	Currency   domain.Currency
	Breakdown  json.RawMessage
	ValidUntil time.Time
}

// CreateQuote attaches a priced quote to a draft or already-quoted
// request. Only the assigned vendor may quote; a new quote supersedes
// earlier ones at read time via GetLatestByRequest.
func (s *QuoteService) CreateQuote(ctx context.Context, in CreateQuoteInput) (*domain.Quote, error) {
	log := logging.FromContext(ctx)

	if !in.Total.IsPositive() {
		return nil, fmt.Errorf("CreateQuote: total must be positive: %w", domain.ErrValidation)
	}
	if !in.Currency.IsValid() {
		return nil, fmt.Errorf("CreateQuote: %w", domain.ErrValidation)
	}
	now := time.Now().UTC()
	if !in.ValidUntil.After(now) {
		return nil, fmt.Errorf("CreateQuote: valid_until in the past: %w", domain.ErrValidation)
	}

	req, err := s.requests.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, fmt.Errorf("CreateQuote: %w", err)
	}
	if req.VendorID != in.VendorID {
		return nil, fmt.Errorf("CreateQuote: %w", domain.ErrNotFound)
	}
	if req.Status != domain.ServiceRequestStatusDraft && req.Status != domain.ServiceRequestStatusQuoted {
		return nil, fmt.Errorf("CreateQuote: request status %s: %w", req.Status, domain.ErrValidation)
	}

	q := &domain.Quote{
		ID:         uuid.New(),
		RequestID:  in.RequestID,
		Total:      in.Total,
		Currency:   in.Currency,
		Breakdown:  in.Breakdown,
		ValidUntil: in.ValidUntil,
		Status:     domain.QuoteStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.quotes.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("CreateQuote: %w", err)
	}

	log.Info("quote created",
		"quote_id", q.ID, "request_id", in.RequestID, "total", in.Total, "valid_until", in.ValidUntil)
	return q, nil
}

// SendQuote publishes a draft quote to the requester and moves the
// request to quoted.
func (s *QuoteService) SendQuote(ctx context.Context, quoteID, vendorID uuid.UUID) (*domain.Quote, error) {
	q, err := s.quotes.GetByID(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("SendQuote: %w", err)
	}

	req, err := s.requests.GetByID(ctx, q.RequestID)
	if err != nil {
		return nil, fmt.Errorf("SendQuote: %w", err)
	}
	if req.VendorID != vendorID {
		return nil, fmt.Errorf("SendQuote: %w", domain.ErrNotFound)
	}

	moved, err := s.quotes.TransitionStatus(ctx, quoteID, domain.QuoteStatusDraft, domain.QuoteStatusSent)
	if err != nil {
		return nil, fmt.Errorf("SendQuote: %w", err)
	}
	if !moved {
		return nil, fmt.Errorf("SendQuote: quote status %s: %w", q.Status, domain.ErrValidation)
	}

	if req.Status == domain.ServiceRequestStatusDraft {
		if err := s.requests.UpdateStatus(ctx, req.ID, domain.ServiceRequestStatusQuoted); err != nil {
			return nil, fmt.Errorf("SendQuote: %w", err)
		}
	}

	return s.quotes.GetByID(ctx, quoteID)
}

// AcceptQuote locks the price in. Expiry is checked here at read time;
// once accepted, a quote stays payable even after ValidUntil passes.
func (s *QuoteService) AcceptQuote(ctx context.Context, quoteID, requesterID uuid.UUID) (*domain.Quote, error) {
	log := logging.FromContext(ctx)

	q, err := s.quotes.GetByID(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("AcceptQuote: %w", err)
	}

	req, err := s.requests.GetByID(ctx, q.RequestID)
	if err != nil {
		return nil, fmt.Errorf("AcceptQuote: %w", err)
	}
	if req.RequesterID != requesterID {
		return nil, fmt.Errorf("AcceptQuote: %w", domain.ErrNotFound)
	}

	now := time.Now().UTC()
	if q.EffectiveStatus(now) == domain.QuoteStatusExpired {
		return nil, fmt.Errorf("AcceptQuote: %w", domain.ErrQuoteNotPayable)
	}

	moved, err := s.quotes.TransitionStatus(ctx, quoteID, domain.QuoteStatusSent, domain.QuoteStatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("AcceptQuote: %w", err)
	}
	if !moved {
		return nil, fmt.Errorf("AcceptQuote: quote status %s: %w", q.Status, domain.ErrValidation)
	}

	log.Info("quote accepted", "quote_id", quoteID, "request_id", q.RequestID, "total", q.Total)
	return s.quotes.GetByID(ctx, quoteID)
}

func (s *QuoteService) GetQuote(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	q, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetQuote: %w", err)
	}
	return q, nil
}
