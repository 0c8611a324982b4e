package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/logging"
	"github.com/bookserve/settlement/internal/provider"
)

// amountEpsilon is the fractional-cent tolerance for matching a
// requested amount against the quoted total.
var amountEpsilon = decimal.RequireFromString("0.005")

type settlementPaymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByReference(ctx context.Context, rail domain.PaymentRail, reference string) (*domain.Payment, error)
	FindByReference(ctx context.Context, reference string) (*domain.Payment, error)
	GetByRequest(ctx context.Context, requestType domain.RequestType, requestID uuid.UUID) ([]domain.Payment, error)
	ClaimTransition(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.PaymentStatus, providerRef, failureReason *string, completedAt *time.Time) (bool, error)
	MarkRefunded(ctx context.Context, tx *sql.Tx, id uuid.UUID, providerRef, reason *string) (bool, error)
}

type settlementBookingRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	MarkConfirmed(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
}

type settlementServiceRequestRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error)
	MarkPaid(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
}

type settlementQuoteRepo interface {
	GetLatestByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Quote, error)
}

type settlementWalletRepo interface {
	Create(ctx context.Context, w *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Wallet, error)
	SetBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error
}

type settlementWalletTxRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.WalletTransaction) error
	GetByReference(ctx context.Context, reference string) (*domain.WalletTransaction, error)
	Finalize(ctx context.Context, tx *sql.Tx, reference string, status domain.WalletTransactionStatus) (bool, error)
	SumCompleted(ctx context.Context, tx *sql.Tx, walletID uuid.UUID) (decimal.Decimal, error)
}

type settlementEventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.PaymentEvent) error
}

type railRegistry interface {
	Get(name domain.PaymentRail) (provider.Rail, bool)
}

// Settlement owns the payment lifecycle: opening intents against a
// rail, and the single idempotent transition function that both the
// webhook handler and the manual verify fallback feed into.
type Settlement struct {
	payments  settlementPaymentRepo
	bookings  settlementBookingRepo
	requests  settlementServiceRequestRepo
	quotes    settlementQuoteRepo
	wallets   settlementWalletRepo
	walletTxs settlementWalletTxRepo
	events    settlementEventRepo
	rails     railRegistry
	notifier  Notifier
	db        *sql.DB
}

func NewSettlement(
	payments settlementPaymentRepo,
	bookings settlementBookingRepo,
	requests settlementServiceRequestRepo,
	quotes settlementQuoteRepo,
	wallets settlementWalletRepo,
	walletTxs settlementWalletTxRepo,
	events settlementEventRepo,
	rails railRegistry,
	notifier Notifier,
	db *sql.DB,
) *Settlement {
	return &Settlement{
		payments:  payments,
		bookings:  bookings,
		requests:  requests,
		quotes:    quotes,
		wallets:   wallets,
		walletTxs: walletTxs,
		events:    events,
		rails:     rails,
		notifier:  notifier,
		db:        db,
	}
}

// NewReference mints the external reference before the provider ever
// sees the attempt, so webhooks can always be correlated back.
func NewReference() string {
	return "BSV-" + uuid.NewString()
}

type InitializePaymentRequest struct {
	ActorID       uuid.UUID
	RequestType   domain.RequestType
	RequestID     uuid.UUID
	Rail          domain.PaymentRail
	Amount        decimal.Decimal
	Currency      domain.Currency
	PayCurrency   string
	CustomerEmail string
}

type PaymentIntentResult struct {
	Payment *domain.Payment
	Intent  *provider.Intent
}

// InitializePayment opens a collection attempt against the requested
// rail. The requested amount must equal the quoted total within
// amountEpsilon; mismatches are fatal to the attempt, never corrected.
func (s *Settlement) InitializePayment(ctx context.Context, req InitializePaymentRequest) (*PaymentIntentResult, error) {
	log := logging.FromContext(ctx)

	rail, ok := s.rails.Get(req.Rail)
	if !ok {
		return nil, fmt.Errorf("InitializePayment: rail %q: %w", req.Rail, domain.ErrValidation)
	}

	expected, currency, err := s.expectedAmount(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("InitializePayment: %w", err)
	}
	if req.Amount.Sub(expected).Abs().GreaterThan(amountEpsilon) {
		return nil, fmt.Errorf("InitializePayment: requested %s, quoted %s: %w",
			req.Amount, expected, domain.ErrAmountMismatch)
	}

	existing, err := s.payments.GetByRequest(ctx, req.RequestType, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("InitializePayment: %w", err)
	}
	for i := range existing {
		if existing[i].Status == domain.PaymentStatusCompleted {
			return nil, fmt.Errorf("InitializePayment: %w", domain.ErrAlreadyPaid)
		}
	}

	reference := NewReference()
	intent, err := rail.CreateIntent(ctx, provider.IntentRequest{
		Reference:     reference,
		Amount:        expected,
		Currency:      currency,
		CustomerEmail: req.CustomerEmail,
		PayCurrency:   req.PayCurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("InitializePayment: %w", err)
	}

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:          uuid.New(),
		Rail:        req.Rail,
		Reference:   reference,
		RequestType: req.RequestType,
		RequestID:   req.RequestID,
		PayerID:     req.ActorID,
		Amount:      expected,
		Currency:    currency,
		Status:      domain.PaymentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if intent.PayCurrency != "" {
		p.PayCurrency = &intent.PayCurrency
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("InitializePayment: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("InitializePayment: %w", err)
	}

	if req.RequestType == domain.RequestTypeWalletDeposit {
		wt := &domain.WalletTransaction{
			ID:        uuid.New(),
			WalletID:  req.RequestID,
			Type:      domain.WalletTxDeposit,
			Amount:    expected,
			Status:    domain.WalletTxPending,
			Reference: reference,
			Narration: "wallet deposit",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.walletTxs.Create(ctx, tx, wt); err != nil {
			return nil, fmt.Errorf("InitializePayment: deposit entry: %w", err)
		}
	}

	if err := s.writeEvent(ctx, tx, p.ID, domain.PaymentEventTypeCreated, "user:"+req.ActorID.String(), nil, now); err != nil {
		return nil, fmt.Errorf("InitializePayment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("InitializePayment: commit: %w", err)
	}

	log.Info("payment initialized",
		"payment_id", p.ID,
		"reference", reference,
		"rail", req.Rail,
		"request_type", req.RequestType,
		"request_id", req.RequestID,
		"amount", expected,
	)
	return &PaymentIntentResult{Payment: p, Intent: intent}, nil
}

// expectedAmount resolves the authoritative amount for the request:
// the booking's price, the accepted quote's total, or, for wallet
// flows, the caller's own amount after validation.
func (s *Settlement) expectedAmount(ctx context.Context, req InitializePaymentRequest) (decimal.Decimal, domain.Currency, error) {
	switch req.RequestType {
	case domain.RequestTypeBooking:
		b, err := s.bookings.GetByID(ctx, req.RequestID)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("expectedAmount: %w", err)
		}
		if b.Status == domain.BookingStatusConfirmed || b.Status == domain.BookingStatusCheckedIn {
			return decimal.Zero, "", fmt.Errorf("expectedAmount: %w", domain.ErrAlreadyPaid)
		}
		if b.Status != domain.BookingStatusPendingPayment {
			return decimal.Zero, "", fmt.Errorf("expectedAmount: booking status %s: %w", b.Status, domain.ErrValidation)
		}
		return b.Amount, b.Currency, nil

	case domain.RequestTypeServiceRequest:
		q, err := s.quotes.GetLatestByRequest(ctx, req.RequestID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return decimal.Zero, "", fmt.Errorf("expectedAmount: %w", domain.ErrQuoteNotPayable)
			}
			return decimal.Zero, "", fmt.Errorf("expectedAmount: %w", err)
		}
		if !q.Payable(time.Now().UTC()) {
			return decimal.Zero, "", fmt.Errorf("expectedAmount: %w", domain.ErrQuoteNotPayable)
		}
		return q.Total, q.Currency, nil

	case domain.RequestTypeWalletDeposit:
		if !req.Amount.IsPositive() {
			return decimal.Zero, "", fmt.Errorf("expectedAmount: %w", domain.ErrValidation)
		}
		w, err := s.wallets.GetByID(ctx, req.RequestID)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("expectedAmount: %w", err)
		}
		return req.Amount, w.Currency, nil

	default:
		return decimal.Zero, "", fmt.Errorf("expectedAmount: request type %q: %w", req.RequestType, domain.ErrValidation)
	}
}

// ApplyProviderEvent is the shared transition function behind both the
// webhook reconciler and the manual verify fallback. Any interleaving
// of deliveries for the same reference converges on one terminal state:
// the first claimant wins, every later event is a no-op.
func (s *Settlement) ApplyProviderEvent(ctx context.Context, railName domain.PaymentRail, ev *provider.Event) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	p, err := s.payments.GetByReference(ctx, railName, ev.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("ApplyProviderEvent: %q: %w", ev.Reference, domain.ErrUnknownReference)
		}
		return nil, fmt.Errorf("ApplyProviderEvent: %w", err)
	}

	if p.Status.Terminal() {
		if p.Status == domain.PaymentStatusCompleted && ev.Status == domain.PaymentStatusRefunded && refundableToWallet(p) {
			return s.applyRefund(ctx, p, ev)
		}
		log.Info("payment already terminal, event ignored",
			"payment_id", p.ID, "reference", ev.Reference, "status", p.Status, "event_status", ev.Status)
		return p, nil
	}

	switch ev.Status {
	case domain.PaymentStatusCompleted:
		return s.applyCompleted(ctx, p, ev)
	case domain.PaymentStatusFailed, domain.PaymentStatusRefunded:
		return s.applyFailed(ctx, p, ev)
	default:
		// Partial or in-flight provider states are logged without a
		// transition; a later event resolves them.
		log.Info("non-terminal provider event",
			"payment_id", p.ID, "reference", ev.Reference, "event_status", ev.Status, "reason", ev.Reason)
		return p, nil
	}
}

func (s *Settlement) applyCompleted(ctx context.Context, p *domain.Payment, ev *provider.Event) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("applyCompleted: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var ref *string
	if ev.ProviderRef != "" {
		ref = &ev.ProviderRef
	}

	claimed, err := s.payments.ClaimTransition(ctx, tx, p.ID, domain.PaymentStatusCompleted, ref, nil, &now)
	if err != nil {
		return nil, fmt.Errorf("applyCompleted: %w", err)
	}
	if !claimed {
		// Another delivery won the race; surface whatever it wrote.
		current, err := s.payments.GetByID(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("applyCompleted: reread: %w", err)
		}
		log.Info("transition already claimed", "payment_id", p.ID, "status", current.Status)
		return current, nil
	}

	if err := s.settleRequest(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("applyCompleted: %w", err)
	}

	if err := s.writeEvent(ctx, tx, p.ID, domain.PaymentEventTypeCompleted, "provider:"+string(p.Rail), nil, now); err != nil {
		return nil, fmt.Errorf("applyCompleted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("applyCompleted: commit: %w", err)
	}

	updated, err := s.payments.GetByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("applyCompleted: reread: %w", err)
	}

	log.Info("payment completed",
		"payment_id", p.ID, "reference", p.Reference, "request_type", p.RequestType, "request_id", p.RequestID)

	// Outside the transactional boundary: delivery failure must never
	// roll back a committed settlement.
	s.notifier.PaymentCompleted(ctx, updated)
	return updated, nil
}

// settleRequest applies the request-side effect of a completed payment
// inside the same transaction as the payment transition, so partial
// application (payment completed, request still pending) cannot exist.
func (s *Settlement) settleRequest(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	switch p.RequestType {
	case domain.RequestTypeBooking:
		if _, err := s.bookings.MarkConfirmed(ctx, tx, p.RequestID); err != nil {
			return fmt.Errorf("settleRequest: %w", err)
		}
	case domain.RequestTypeServiceRequest:
		if _, err := s.requests.MarkPaid(ctx, tx, p.RequestID); err != nil {
			return fmt.Errorf("settleRequest: %w", err)
		}
	case domain.RequestTypeWalletDeposit, domain.RequestTypeWalletWithdrawal:
		if err := s.finalizeWalletEntry(ctx, tx, p.Reference, domain.WalletTxCompleted); err != nil {
			return fmt.Errorf("settleRequest: %w", err)
		}
	}
	return nil
}

// finalizeWalletEntry moves the reserved ledger entry to its terminal
// status and, when funds actually moved, recomputes the cached balance
// from the transaction sum under the wallet row lock.
func (s *Settlement) finalizeWalletEntry(ctx context.Context, tx *sql.Tx, reference string, status domain.WalletTransactionStatus) error {
	wt, err := s.walletTxs.GetByReference(ctx, reference)
	if err != nil {
		return fmt.Errorf("finalizeWalletEntry: %w", err)
	}

	if _, err := s.wallets.GetForUpdate(ctx, tx, wt.WalletID); err != nil {
		return fmt.Errorf("finalizeWalletEntry: %w", err)
	}

	finalized, err := s.walletTxs.Finalize(ctx, tx, reference, status)
	if err != nil {
		return fmt.Errorf("finalizeWalletEntry: %w", err)
	}
	if !finalized {
		return nil
	}

	if status == domain.WalletTxCompleted {
		sum, err := s.walletTxs.SumCompleted(ctx, tx, wt.WalletID)
		if err != nil {
			return fmt.Errorf("finalizeWalletEntry: %w", err)
		}
		if err := s.wallets.SetBalance(ctx, tx, wt.WalletID, sum); err != nil {
			return fmt.Errorf("finalizeWalletEntry: %w", err)
		}
	}
	return nil
}

// refundableToWallet limits refunds-after-completion to payments that
// collected money for a request. A charged-back deposit or a returned
// payout would have to debit the wallet, which the ledger does not do
// automatically; those events stay logged no-ops for manual handling.
func refundableToWallet(p *domain.Payment) bool {
	return p.RequestType == domain.RequestTypeBooking || p.RequestType == domain.RequestTypeServiceRequest
}

// applyRefund credits the payer's wallet with the refunded amount. The
// MarkRefunded guard makes the credit single-shot: duplicate refund
// deliveries find the payment already refunded and fall through to the
// terminal no-op path.
func (s *Settlement) applyRefund(ctx context.Context, p *domain.Payment, ev *provider.Event) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	wallet, err := s.payerWallet(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("applyRefund: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("applyRefund: begin tx: %w", err)
	}
	defer tx.Rollback()

	var ref *string
	if ev.ProviderRef != "" {
		ref = &ev.ProviderRef
	}
	var reason *string
	if ev.Reason != "" {
		reason = &ev.Reason
	}

	refunded, err := s.payments.MarkRefunded(ctx, tx, p.ID, ref, reason)
	if err != nil {
		return nil, fmt.Errorf("applyRefund: %w", err)
	}
	if !refunded {
		current, err := s.payments.GetByID(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("applyRefund: reread: %w", err)
		}
		log.Info("refund already applied", "payment_id", p.ID, "status", current.Status)
		return current, nil
	}

	if _, err := s.wallets.GetForUpdate(ctx, tx, wallet.ID); err != nil {
		return nil, fmt.Errorf("applyRefund: %w", err)
	}

	now := time.Now().UTC()
	entry := &domain.WalletTransaction{
		ID:        uuid.New(),
		WalletID:  wallet.ID,
		Type:      domain.WalletTxRefund,
		Amount:    p.Amount.Mul(domain.WalletTxRefund.Effect()),
		Status:    domain.WalletTxCompleted,
		Reference: "RF-" + p.Reference,
		Narration: "refund of " + p.Reference,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.walletTxs.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("applyRefund: %w", err)
	}

	sum, err := s.walletTxs.SumCompleted(ctx, tx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("applyRefund: %w", err)
	}
	if err := s.wallets.SetBalance(ctx, tx, wallet.ID, sum); err != nil {
		return nil, fmt.Errorf("applyRefund: %w", err)
	}

	payload, _ := json.Marshal(map[string]string{"reason": ev.Reason})
	if err := s.writeEvent(ctx, tx, p.ID, domain.PaymentEventTypeRefunded, "provider:"+string(p.Rail), payload, now); err != nil {
		return nil, fmt.Errorf("applyRefund: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("applyRefund: commit: %w", err)
	}

	updated, err := s.payments.GetByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("applyRefund: reread: %w", err)
	}

	log.Info("payment refunded to wallet",
		"payment_id", p.ID, "reference", p.Reference, "wallet_id", wallet.ID, "amount", p.Amount)
	return updated, nil
}

// payerWallet resolves the wallet the refund lands in, creating one for
// payers who have never used the ledger before.
func (s *Settlement) payerWallet(ctx context.Context, p *domain.Payment) (*domain.Wallet, error) {
	wallet, err := s.wallets.GetByUserID(ctx, p.PayerID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("payerWallet: %w", err)
	}

	now := time.Now().UTC()
	wallet = &domain.Wallet{
		ID:        uuid.New(),
		UserID:    p.PayerID,
		Balance:   decimal.Zero,
		Currency:  p.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		if errors.Is(err, domain.ErrWalletExists) {
			existing, rerr := s.wallets.GetByUserID(ctx, p.PayerID)
			if rerr != nil {
				return nil, fmt.Errorf("payerWallet: %w", rerr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("payerWallet: %w", err)
	}
	return wallet, nil
}

func (s *Settlement) applyFailed(ctx context.Context, p *domain.Payment, ev *provider.Event) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("applyFailed: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	status := domain.PaymentStatusFailed
	eventType := domain.PaymentEventTypeFailed
	if ev.Status == domain.PaymentStatusRefunded {
		status = domain.PaymentStatusRefunded
		eventType = domain.PaymentEventTypeRefunded
	}

	var ref *string
	if ev.ProviderRef != "" {
		ref = &ev.ProviderRef
	}
	var reason *string
	if ev.Reason != "" {
		reason = &ev.Reason
	}

	claimed, err := s.payments.ClaimTransition(ctx, tx, p.ID, status, ref, reason, nil)
	if err != nil {
		return nil, fmt.Errorf("applyFailed: %w", err)
	}
	if !claimed {
		current, err := s.payments.GetByID(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("applyFailed: reread: %w", err)
		}
		log.Info("transition already claimed", "payment_id", p.ID, "status", current.Status)
		return current, nil
	}

	switch p.RequestType {
	case domain.RequestTypeBooking:
		// Never overrides a booking confirmed through another attempt:
		// MarkFailed only fires from pending_payment.
		if _, err := s.bookings.MarkFailed(ctx, tx, p.RequestID); err != nil {
			return nil, fmt.Errorf("applyFailed: %w", err)
		}
	case domain.RequestTypeServiceRequest:
		if _, err := s.requests.MarkFailed(ctx, tx, p.RequestID); err != nil {
			return nil, fmt.Errorf("applyFailed: %w", err)
		}
	case domain.RequestTypeWalletDeposit, domain.RequestTypeWalletWithdrawal:
		// Failing the entry releases the reservation; no balance change
		// because pending entries never counted toward it.
		if err := s.finalizeWalletEntry(ctx, tx, p.Reference, domain.WalletTxFailed); err != nil {
			return nil, fmt.Errorf("applyFailed: %w", err)
		}
	}

	payload, _ := json.Marshal(map[string]string{"reason": ev.Reason})
	if err := s.writeEvent(ctx, tx, p.ID, eventType, "provider:"+string(p.Rail), payload, now); err != nil {
		return nil, fmt.Errorf("applyFailed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("applyFailed: commit: %w", err)
	}

	updated, err := s.payments.GetByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("applyFailed: reread: %w", err)
	}

	log.Info("payment failed", "payment_id", p.ID, "reference", p.Reference, "reason", ev.Reason)
	s.notifier.PaymentFailed(ctx, updated)
	return updated, nil
}

// VerifyPayment is the client-triggered reconciliation fallback for
// webhooks that never arrived. It performs a synchronous provider
// lookup and feeds the result through the same transition function.
func (s *Settlement) VerifyPayment(ctx context.Context, railName domain.PaymentRail, reference string) (*domain.Payment, error) {
	rail, ok := s.rails.Get(railName)
	if !ok {
		return nil, fmt.Errorf("VerifyPayment: rail %q: %w", railName, domain.ErrValidation)
	}

	ev, err := rail.VerifyStatus(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("VerifyPayment: %w", err)
	}

	p, err := s.ApplyProviderEvent(ctx, railName, ev)
	if err != nil {
		return nil, fmt.Errorf("VerifyPayment: %w", err)
	}
	return p, nil
}

// CheckStatus resolves a payment by reference alone and, when its rail
// supports a provider lookup, reconciles against the provider before
// answering. Wallet payments settle synchronously and are returned
// as-is.
func (s *Settlement) CheckStatus(ctx context.Context, reference string) (*domain.Payment, error) {
	p, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("CheckStatus: %w", err)
	}
	if p.Status.Terminal() || p.Rail == domain.RailWallet {
		return p, nil
	}
	return s.VerifyPayment(ctx, p.Rail, reference)
}

type RequestPaymentStatus struct {
	HasPaid    bool
	HasPending bool
	Payment    *domain.Payment
}

func (s *Settlement) CheckRequestStatus(ctx context.Context, requestType domain.RequestType, requestID uuid.UUID) (*RequestPaymentStatus, error) {
	payments, err := s.payments.GetByRequest(ctx, requestType, requestID)
	if err != nil {
		return nil, fmt.Errorf("CheckRequestStatus: %w", err)
	}

	status := &RequestPaymentStatus{}
	for i := range payments {
		p := &payments[i]
		switch {
		case p.Status == domain.PaymentStatusCompleted:
			status.HasPaid = true
			status.Payment = p
		case !p.Status.Terminal():
			status.HasPending = true
			if status.Payment == nil {
				status.Payment = p
			}
		}
	}
	return status, nil
}

func (s *Settlement) GetPaymentByReference(ctx context.Context, railName domain.PaymentRail, reference string) (*domain.Payment, error) {
	p, err := s.payments.GetByReference(ctx, railName, reference)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentByReference: %w", err)
	}
	return p, nil
}

// GetPayment is the read-only reference lookup; it never contacts the
// provider.
func (s *Settlement) GetPayment(ctx context.Context, reference string) (*domain.Payment, error) {
	p, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("GetPayment: %w", err)
	}
	return p, nil
}

func (s *Settlement) writeEvent(ctx context.Context, tx *sql.Tx, paymentID uuid.UUID, eventType domain.PaymentEventType, actor string, payload json.RawMessage, now time.Time) error {
	event := &domain.PaymentEvent{
		ID:        uuid.New(),
		PaymentID: paymentID,
		EventType: eventType,
		Actor:     actor,
		Payload:   payload,
		CreatedAt: now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("writeEvent: %w", err)
	}
	return nil
}
