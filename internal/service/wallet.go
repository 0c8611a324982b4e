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
	"github.com/bookserve/settlement/internal/repository"
)

type walletRepo interface {
	Create(ctx context.Context, w *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Wallet, error)
	SetBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error
}

type walletLedgerRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.WalletTransaction) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, int, error)
	SumCompleted(ctx context.Context, tx *sql.Tx, walletID uuid.UUID) (decimal.Decimal, error)
	SumPendingWithdrawals(ctx context.Context, tx *sql.Tx, walletID uuid.UUID) (decimal.Decimal, error)
	Statistics(ctx context.Context, walletID uuid.UUID) (*repository.WalletStatistics, error)
}

type walletPaymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
	GetByRequest(ctx context.Context, requestType domain.RequestType, requestID uuid.UUID) ([]domain.Payment, error)
}

type walletBookingRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	MarkConfirmed(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
}

type walletServiceRequestRepo interface {
	MarkPaid(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
}

type walletQuoteRepo interface {
	GetLatestByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Quote, error)
}

type walletEventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.PaymentEvent) error
}

type paymentInitiator interface {
	InitializePayment(ctx context.Context, req InitializePaymentRequest) (*PaymentIntentResult, error)
}

// WalletService owns the internal ledger. Balances are derived from the
// sum of completed entries, never adjusted in place; every write path
// takes the wallet row lock first.
type WalletService struct {
	wallets   walletRepo
	ledger    walletLedgerRepo
	payments  walletPaymentRepo
	bookings  walletBookingRepo
	requests  walletServiceRequestRepo
	quotes    walletQuoteRepo
	events    walletEventRepo
	initiator paymentInitiator
	rails     railRegistry
	notifier  Notifier
	db        *sql.DB
}

func NewWalletService(
	wallets walletRepo,
	ledger walletLedgerRepo,
	payments walletPaymentRepo,
	bookings walletBookingRepo,
	requests walletServiceRequestRepo,
	quotes walletQuoteRepo,
	events walletEventRepo,
	initiator paymentInitiator,
	rails railRegistry,
	notifier Notifier,
	db *sql.DB,
) *WalletService {
	return &WalletService{
		wallets:   wallets,
		ledger:    ledger,
		payments:  payments,
		bookings:  bookings,
		requests:  requests,
		quotes:    quotes,
		events:    events,
		initiator: initiator,
		rails:     rails,
		notifier:  notifier,
		db:        db,
	}
}

// GetOrCreate returns the user's wallet, creating it on first use. A
// concurrent first use loses at the unique constraint and re-reads.
func (s *WalletService) GetOrCreate(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("GetOrCreate: %w", err)
	}

	if !currency.IsValid() {
		return nil, fmt.Errorf("GetOrCreate: %w", domain.ErrValidation)
	}

	now := time.Now().UTC()
	w = &domain.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.wallets.Create(ctx, w); err != nil {
		if errors.Is(err, domain.ErrWalletExists) {
			existing, rerr := s.wallets.GetByUserID(ctx, userID)
			if rerr != nil {
				return nil, fmt.Errorf("GetOrCreate: %w", rerr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("GetOrCreate: %w", err)
	}
	return w, nil
}

// BalanceResult distinguishes the settled balance from what is actually
// spendable once in-flight withdrawal reservations are subtracted.
type BalanceResult struct {
	Wallet    *domain.Wallet
	Balance   decimal.Decimal
	Available decimal.Decimal
}

func (s *WalletService) Balance(ctx context.Context, userID uuid.UUID) (*BalanceResult, error) {
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Balance: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Balance: begin tx: %w", err)
	}
	defer tx.Rollback()

	completed, err := s.ledger.SumCompleted(ctx, tx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("Balance: %w", err)
	}
	reserved, err := s.ledger.SumPendingWithdrawals(ctx, tx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("Balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Balance: commit: %w", err)
	}

	return &BalanceResult{
		Wallet:    w,
		Balance:   completed,
		Available: completed.Add(reserved),
	}, nil
}

type DepositRequest struct {
	UserID        uuid.UUID
	Rail          domain.PaymentRail
	Amount        decimal.Decimal
	PayCurrency   string
	CustomerEmail string
}

// Deposit opens a funding attempt on an external rail. The ledger entry
// it creates stays pending until the provider confirms; only then does
// the balance move.
func (s *WalletService) Deposit(ctx context.Context, req DepositRequest) (*PaymentIntentResult, error) {
	if req.Rail == domain.RailWallet {
		return nil, fmt.Errorf("Deposit: cannot fund a wallet from itself: %w", domain.ErrValidation)
	}

	w, err := s.wallets.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	result, err := s.initiator.InitializePayment(ctx, InitializePaymentRequest{
		ActorID:       req.UserID,
		RequestType:   domain.RequestTypeWalletDeposit,
		RequestID:     w.ID,
		Rail:          req.Rail,
		Amount:        req.Amount,
		Currency:      w.Currency,
		PayCurrency:   req.PayCurrency,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	return result, nil
}

type WalletPayRequest struct {
	UserID      uuid.UUID
	RequestType domain.RequestType
	RequestID   uuid.UUID
}

// Pay settles a booking or service request from wallet funds. Unlike the
// external rails it is synchronous: the funds check, the ledger entry,
// the payment record and the request transition commit together, so
// there is no webhook to wait for and no pending state to reconcile.
func (s *WalletService) Pay(ctx context.Context, req WalletPayRequest) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	if req.RequestType != domain.RequestTypeBooking && req.RequestType != domain.RequestTypeServiceRequest {
		return nil, fmt.Errorf("Pay: request type %q: %w", req.RequestType, domain.ErrValidation)
	}

	w, err := s.wallets.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}

	amount, currency, err := s.dueAmount(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}
	if currency != w.Currency {
		return nil, fmt.Errorf("Pay: wallet holds %s, request is %s: %w", w.Currency, currency, domain.ErrValidation)
	}

	existing, err := s.payments.GetByRequest(ctx, req.RequestType, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}
	for i := range existing {
		if existing[i].Status == domain.PaymentStatusCompleted {
			return nil, fmt.Errorf("Pay: %w", domain.ErrAlreadyPaid)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Pay: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.wallets.GetForUpdate(ctx, tx, w.ID); err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}

	available, err := s.availableLocked(ctx, tx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}
	if available.LessThan(amount) {
		return nil, fmt.Errorf("Pay: available %s, need %s: %w", available, amount, domain.ErrInsufficientFunds)
	}

	now := time.Now().UTC()
	reference := NewReference()
	p := &domain.Payment{
		ID:          uuid.New(),
		Rail:        domain.RailWallet,
		Reference:   reference,
		RequestType: req.RequestType,
		RequestID:   req.RequestID,
		PayerID:     req.UserID,
		Amount:      amount,
		Currency:    currency,
		Status:      domain.PaymentStatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
		CompletedAt: &now,
	}
	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}

	entry := &domain.WalletTransaction{
		ID:        uuid.New(),
		WalletID:  w.ID,
		Type:      domain.WalletTxPayment,
		Amount:    amount.Mul(domain.WalletTxPayment.Effect()),
		Status:    domain.WalletTxCompleted,
		Reference: reference,
		Narration: fmt.Sprintf("payment for %s %s", req.RequestType, req.RequestID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}

	switch req.RequestType {
	case domain.RequestTypeBooking:
		if _, err := s.bookings.MarkConfirmed(ctx, tx, req.RequestID); err != nil {
			return nil, fmt.Errorf("Pay: %w", err)
		}
	case domain.RequestTypeServiceRequest:
		if _, err := s.requests.MarkPaid(ctx, tx, req.RequestID); err != nil {
			return nil, fmt.Errorf("Pay: %w", err)
		}
	}

	sum, err := s.ledger.SumCompleted(ctx, tx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}
	if err := s.wallets.SetBalance(ctx, tx, w.ID, sum); err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}

	event := &domain.PaymentEvent{
		ID:        uuid.New(),
		PaymentID: p.ID,
		EventType: domain.PaymentEventTypeCompleted,
		Actor:     "user:" + req.UserID.String(),
		CreatedAt: now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Pay: commit: %w", err)
	}

	log.Info("wallet payment settled",
		"payment_id", p.ID,
		"wallet_id", w.ID,
		"request_type", req.RequestType,
		"request_id", req.RequestID,
		"amount", amount,
	)
	s.notifier.PaymentCompleted(ctx, p)
	return p, nil
}

func (s *WalletService) dueAmount(ctx context.Context, req WalletPayRequest) (decimal.Decimal, domain.Currency, error) {
	switch req.RequestType {
	case domain.RequestTypeBooking:
		b, err := s.bookings.GetByID(ctx, req.RequestID)
		if err != nil {
			return decimal.Zero, "", err
		}
		if b.Status == domain.BookingStatusConfirmed || b.Status == domain.BookingStatusCheckedIn {
			return decimal.Zero, "", domain.ErrAlreadyPaid
		}
		if b.Status != domain.BookingStatusPendingPayment {
			return decimal.Zero, "", fmt.Errorf("booking status %s: %w", b.Status, domain.ErrValidation)
		}
		return b.Amount, b.Currency, nil
	default:
		q, err := s.quotes.GetLatestByRequest(ctx, req.RequestID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return decimal.Zero, "", domain.ErrQuoteNotPayable
			}
			return decimal.Zero, "", err
		}
		if !q.Payable(time.Now().UTC()) {
			return decimal.Zero, "", domain.ErrQuoteNotPayable
		}
		return q.Total, q.Currency, nil
	}
}

type WithdrawalRequest struct {
	UserID      uuid.UUID
	Rail        domain.PaymentRail
	Amount      decimal.Decimal
	Destination string
}

// RequestWithdrawal is phase one of a two-phase payout: it reserves the
// funds with a pending ledger entry, records a pending payment, and
// submits the payout to the rail after commit. The provider's callback,
// flowing through the same reconciler as collections, finalizes or
// releases the reservation.
func (s *WalletService) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("RequestWithdrawal: %w", domain.ErrValidation)
	}
	if req.Rail != domain.RailCard && req.Rail != domain.RailCrypto {
		return nil, fmt.Errorf("RequestWithdrawal: rail %q: %w", req.Rail, domain.ErrValidation)
	}
	if req.Destination == "" {
		return nil, fmt.Errorf("RequestWithdrawal: destination required: %w", domain.ErrValidation)
	}
	rail, ok := s.rails.Get(req.Rail)
	if !ok {
		return nil, fmt.Errorf("RequestWithdrawal: rail %q: %w", req.Rail, domain.ErrValidation)
	}

	w, err := s.wallets.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.wallets.GetForUpdate(ctx, tx, w.ID); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	available, err := s.availableLocked(ctx, tx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}
	if available.LessThan(req.Amount) {
		return nil, fmt.Errorf("RequestWithdrawal: available %s, need %s: %w", available, req.Amount, domain.ErrInsufficientFunds)
	}

	now := time.Now().UTC()
	reference := NewReference()
	p := &domain.Payment{
		ID:          uuid.New(),
		Rail:        req.Rail,
		Reference:   reference,
		RequestType: domain.RequestTypeWalletWithdrawal,
		RequestID:   w.ID,
		PayerID:     req.UserID,
		Amount:      req.Amount,
		Currency:    w.Currency,
		Status:      domain.PaymentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	entry := &domain.WalletTransaction{
		ID:        uuid.New(),
		WalletID:  w.ID,
		Type:      domain.WalletTxWithdrawal,
		Amount:    req.Amount.Mul(domain.WalletTxWithdrawal.Effect()),
		Status:    domain.WalletTxPending,
		Reference: reference,
		Narration: "withdrawal to " + string(req.Rail),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	payload, _ := json.Marshal(map[string]string{"destination": req.Destination})
	event := &domain.PaymentEvent{
		ID:        uuid.New(),
		PaymentID: p.ID,
		EventType: domain.PaymentEventTypeCreated,
		Actor:     "user:" + req.UserID.String(),
		Payload:   payload,
		CreatedAt: now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: commit: %w", err)
	}

	// Submission happens after the reservation is durable. A submission
	// failure leaves the payment pending for the verify fallback; it
	// never unwinds the committed reservation here.
	if err := rail.CreatePayout(ctx, provider.PayoutRequest{
		Reference:   reference,
		Amount:      req.Amount,
		Currency:    w.Currency,
		Destination: req.Destination,
	}); err != nil {
		log.Warn("payout submission failed, payment stays pending",
			"payment_id", p.ID, "reference", reference, "error", err)
	}

	log.Info("withdrawal requested",
		"payment_id", p.ID, "wallet_id", w.ID, "rail", req.Rail, "amount", req.Amount)
	return p, nil
}

// availableLocked computes spendable funds under the wallet row lock:
// the completed sum plus the (negative) pending withdrawal reservation.
func (s *WalletService) availableLocked(ctx context.Context, tx *sql.Tx, walletID uuid.UUID) (decimal.Decimal, error) {
	completed, err := s.ledger.SumCompleted(ctx, tx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	reserved, err := s.ledger.SumPendingWithdrawals(ctx, tx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	return completed.Add(reserved), nil
}

type TransactionPage struct {
	Transactions []domain.WalletTransaction
	Total        int
	Limit        int
	Offset       int
}

func (s *WalletService) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) (*TransactionPage, error) {
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Transactions: %w", err)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	txs, total, err := s.ledger.ListByWallet(ctx, w.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("Transactions: %w", err)
	}
	return &TransactionPage{Transactions: txs, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *WalletService) Statistics(ctx context.Context, userID uuid.UUID) (*repository.WalletStatistics, error) {
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Statistics: %w", err)
	}
	stats, err := s.ledger.Statistics(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("Statistics: %w", err)
	}
	return stats, nil
}
