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

type bookingService interface {
	CreateBooking(ctx context.Context, req service.CreateBookingRequest) (*domain.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id, actorID uuid.UUID) error
}

type availabilityService interface {
	CheckAvailability(ctx context.Context, resourceID uuid.UUID, checkIn, checkOut time.Time, exclude ...domain.BookingStatus) (*service.AvailabilityResult, error)
}

type BookingHandler struct {
	bookings     bookingService
	availability availabilityService
}

func NewBookingHandler(bookings bookingService, availability availabilityService) *BookingHandler {
	return &BookingHandler{bookings: bookings, availability: availability}
}

type createBookingRequest struct {
	ResourceID string `json:"resource_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

func (r createBookingRequest) Validate() []FieldError {
	var errs []FieldError

	if r.ResourceID == "" {
		errs = append(errs, FieldError{Field: "resource_id", Message: "required"})
	} else if _, err := uuid.Parse(r.ResourceID); err != nil {
		errs = append(errs, FieldError{Field: "resource_id", Message: "must be a valid UUID"})
	}

	if r.CheckIn == "" {
		errs = append(errs, FieldError{Field: "check_in", Message: "required"})
	} else if _, err := time.Parse(time.DateOnly, r.CheckIn); err != nil {
		errs = append(errs, FieldError{Field: "check_in", Message: "must be YYYY-MM-DD"})
	}

	if r.CheckOut == "" {
		errs = append(errs, FieldError{Field: "check_out", Message: "required"})
	} else if _, err := time.Parse(time.DateOnly, r.CheckOut); err != nil {
		errs = append(errs, FieldError{Field: "check_out", Message: "must be YYYY-MM-DD"})
	}

	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if amt, err := decimal.NewFromString(r.Amount); err != nil || !amt.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive decimal"})
	}

	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be NGN or USD"})
	}

	return errs
}

type bookingDTO struct {
	ID         uuid.UUID `json:"id"`
	ResourceID uuid.UUID `json:"resource_id"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
	Status     string    `json:"status"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

func toBookingDTO(b *domain.Booking) bookingDTO {
	return bookingDTO{
		ID:         b.ID,
		ResourceID: b.ResourceID,
		CheckIn:    b.CheckIn.Format(time.DateOnly),
		CheckOut:   b.CheckOut.Format(time.DateOnly),
		Status:     string(b.Status),
		Amount:     b.Amount.StringFixed(2),
		Currency:   string(b.Currency),
		CreatedAt:  b.CreatedAt,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	resourceID, _ := uuid.Parse(req.ResourceID)
	checkIn, _ := time.Parse(time.DateOnly, req.CheckIn)
	checkOut, _ := time.Parse(time.DateOnly, req.CheckOut)
	amount, _ := decimal.NewFromString(req.Amount)

	b, err := h.bookings.CreateBooking(r.Context(), service.CreateBookingRequest{
		GuestID:    principal.UserID,
		ResourceID: resourceID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Amount:     amount,
		Currency:   domain.Currency(req.Currency),
	})
	if err != nil {
		log.Warn("booking creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toBookingDTO(b))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	b, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toBookingDTO(b))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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

	if err := h.bookings.CancelBooking(r.Context(), id, principal.UserID); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type availabilityDTO struct {
	Available bool         `json:"available"`
	Conflicts []bookingDTO `json:"conflicts,omitempty"`
}

// CheckAvailability is advisory: a slot reported available can still be
// lost to a concurrent booking at insert time.
func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	q := r.URL.Query()
	resourceID, err := uuid.Parse(q.Get("resource_id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "resource_id", Message: "must be a valid UUID"}})
		return
	}
	checkIn, err := time.Parse(time.DateOnly, q.Get("check_in"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "check_in", Message: "must be YYYY-MM-DD"}})
		return
	}
	checkOut, err := time.Parse(time.DateOnly, q.Get("check_out"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "check_out", Message: "must be YYYY-MM-DD"}})
		return
	}

	result, err := h.availability.CheckAvailability(r.Context(), resourceID, checkIn, checkOut)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dto := availabilityDTO{Available: result.Available}
	for i := range result.Conflicts {
		dto.Conflicts = append(dto.Conflicts, toBookingDTO(&result.Conflicts[i]))
	}
	RespondSuccess(w, http.StatusOK, dto)
}
