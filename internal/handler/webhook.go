package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/logging"
	"github.com/bookserve/settlement/internal/provider"
)

type railRegistry interface {
	Get(name domain.PaymentRail) (provider.Rail, bool)
}

type settlementService interface {
	ApplyProviderEvent(ctx context.Context, rail domain.PaymentRail, ev *provider.Event) (*domain.Payment, error)
}

// WebhookHandler receives provider callbacks. It authenticates before
// touching any state, acks duplicates and unknown references with 200
// so providers stop redelivering, and returns non-2xx only when a
// genuine processing failure makes a redelivery worthwhile.
type WebhookHandler struct {
	rails      railRegistry
	settlement settlementService
}

func NewWebhookHandler(rails railRegistry, settlement settlementService) *WebhookHandler {
	return &WebhookHandler{rails: rails, settlement: settlement}
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	railName := domain.PaymentRail(r.PathValue("provider"))
	rail, ok := h.rails.Get(railName)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if err := rail.AuthenticateWebhook(body, r.Header); err != nil {
		log.Warn("webhook authentication failed", "rail", railName, "error", err)
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	ev, err := rail.ParseWebhook(body)
	if err != nil {
		log.Warn("failed to parse webhook payload", "rail", railName, "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	p, err := h.settlement.ApplyProviderEvent(r.Context(), railName, ev)
	if err != nil {
		// A reference this system never issued is acked so the provider
		// stops retrying; it stays in the log for investigation.
		if errors.Is(err, domain.ErrUnknownReference) {
			log.Warn("webhook for unknown reference", "rail", railName, "reference", ev.Reference)
			RespondSuccess(w, http.StatusOK, map[string]string{"status": "unknown_reference"})
			return
		}
		log.Error("webhook processing failed", "rail", railName, "reference", ev.Reference, "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	log.Info("webhook processed",
		"rail", railName,
		"reference", ev.Reference,
		"event_status", ev.Status,
		"payment_status", p.Status,
	)
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "processed"})
}
