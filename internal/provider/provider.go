// Package provider abstracts the heterogeneous payment rails behind a
// single capability interface so settlement logic stays rail-agnostic.
package provider

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/bookserve/settlement/internal/domain"
)

// IntentRequest carries everything a rail needs to open a collection
// attempt. Reference is generated by this system, never the provider,
// so webhooks can be correlated before the provider acknowledges.
type IntentRequest struct {
	Reference     string
	Amount        decimal.Decimal
	Currency      domain.Currency
	CustomerEmail string
	PayCurrency   string
	Metadata      map[string]string
}

// Intent is the rail-specific handle the client needs to complete
// payment: an inline widget token for the card rail, a redirect URL for
// the crypto rail (crypto settlement is provider-redirected and cannot
// use the inline pattern).
type Intent struct {
	Reference   string
	Rail        domain.PaymentRail
	ClientToken string
	RedirectURL string
	PayCurrency string
	PayAmount   decimal.Decimal
}

// PayoutRequest asks a rail to move funds out to a destination the
// caller owns: a recipient bank account id on the card rail, an
// on-chain address on the crypto rail. Reference follows the same
// system-minted convention as collections, so the payout's callback
// flows through the same reconciliation path.
type PayoutRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    domain.Currency
	Destination string
}

// Event is a provider-reported status for one reference, produced by
// either a webhook or a synchronous verify lookup. Both paths feed the
// same settlement transition.
type Event struct {
	Reference   string
	Status      domain.PaymentStatus
	ProviderRef string
	Reason      string
}

type Rail interface {
	Name() domain.PaymentRail

	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)

	// CreatePayout submits a withdrawal to the provider. Acceptance is
	// not settlement: the payout stays pending until the provider's
	// callback or a VerifyStatus lookup resolves it.
	CreatePayout(ctx context.Context, req PayoutRequest) error

	// VerifyStatus is the synchronous fallback when a webhook has not
	// arrived; it must map provider state exactly like ParseWebhook.
	VerifyStatus(ctx context.Context, reference string) (*Event, error)

	// AuthenticateWebhook is called before any state is touched. It
	// returns domain.ErrInvalidSignature on any authenticity failure.
	AuthenticateWebhook(body []byte, header http.Header) error

	ParseWebhook(body []byte) (*Event, error)
}

// Registry resolves a rail by its wire name ("card", "crypto").
type Registry struct {
	rails map[domain.PaymentRail]Rail
}

func NewRegistry(rails ...Rail) *Registry {
	m := make(map[domain.PaymentRail]Rail, len(rails))
	for _, r := range rails {
		m[r.Name()] = r
	}
	return &Registry{rails: m}
}

func (r *Registry) Get(name domain.PaymentRail) (Rail, bool) {
	rail, ok := r.rails[name]
	return rail, ok
}
