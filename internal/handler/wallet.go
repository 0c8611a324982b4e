package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookserve/settlement/internal/auth"
	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/logging"
	"github.com/bookserve/settlement/internal/repository"
	"github.com/bookserve/settlement/internal/service"
)

type walletService interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error)
	Balance(ctx context.Context, userID uuid.UUID) (*service.BalanceResult, error)
	Deposit(ctx context.Context, req service.DepositRequest) (*service.PaymentIntentResult, error)
	Pay(ctx context.Context, req service.WalletPayRequest) (*domain.Payment, error)
	RequestWithdrawal(ctx context.Context, req service.WithdrawalRequest) (*domain.Payment, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) (*service.TransactionPage, error)
	Statistics(ctx context.Context, userID uuid.UUID) (*repository.WalletStatistics, error)
}

type depositVerifier interface {
	CheckStatus(ctx context.Context, reference string) (*domain.Payment, error)
}

type WalletHandler struct {
	wallets  walletService
	verifier depositVerifier
}

func NewWalletHandler(wallets walletService, verifier depositVerifier) *WalletHandler {
	return &WalletHandler{wallets: wallets, verifier: verifier}
}

type walletDTO struct {
	ID        uuid.UUID `json:"id"`
	Balance   string    `json:"balance"`
	Available string    `json:"available"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// Get returns the caller's wallet with its derived balance, creating
// the wallet on first touch. The currency query parameter only matters
// on that first touch.
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	currency := domain.Currency(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = domain.CurrencyNGN
	}

	if _, err := h.wallets.GetOrCreate(r.Context(), principal.UserID, currency); err != nil {
		RespondDomainError(w, err)
		return
	}

	result, err := h.wallets.Balance(r.Context(), principal.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, walletDTO{
		ID:        result.Wallet.ID,
		Balance:   result.Balance.StringFixed(2),
		Available: result.Available.StringFixed(2),
		Currency:  string(result.Wallet.Currency),
		CreatedAt: result.Wallet.CreatedAt,
	})
}

type depositRequest struct {
	Rail        string `json:"rail"`
	Amount      string `json:"amount"`
	PayCurrency string `json:"pay_currency,omitempty"`
}

func (r depositRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Rail == "" {
		errs = append(errs, FieldError{Field: "rail", Message: "required"})
	} else if rail := domain.PaymentRail(r.Rail); !rail.IsValid() || rail == domain.RailWallet {
		errs = append(errs, FieldError{Field: "rail", Message: "must be card or crypto"})
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

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)
	result, err := h.wallets.Deposit(r.Context(), service.DepositRequest{
		UserID:        principal.UserID,
		Rail:          domain.PaymentRail(req.Rail),
		Amount:        amount,
		PayCurrency:   req.PayCurrency,
		CustomerEmail: principal.Email,
	})
	if err != nil {
		log.Warn("wallet deposit failed", "error", err)
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

type verifyDepositRequest struct {
	Reference string `json:"reference"`
}

// VerifyDeposit reconciles a deposit whose webhook has not arrived; it
// hits the provider for the reference and applies the result.
func (h *WalletHandler) VerifyDeposit(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req verifyDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Reference == "" {
		RespondValidationError(w, []FieldError{{Field: "reference", Message: "required"}})
		return
	}

	p, err := h.verifier.CheckStatus(r.Context(), req.Reference)
	if err != nil {
		logging.FromContext(r.Context()).Warn("deposit verification failed", "reference", req.Reference, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

type walletPayRequest struct {
	RequestType string `json:"request_type"`
	RequestID   string `json:"request_id"`
}

func (r walletPayRequest) Validate() []FieldError {
	var errs []FieldError

	if r.RequestType == "" {
		errs = append(errs, FieldError{Field: "request_type", Message: "required"})
	} else if t := domain.RequestType(r.RequestType); t != domain.RequestTypeBooking && t != domain.RequestTypeServiceRequest {
		errs = append(errs, FieldError{Field: "request_type", Message: "must be booking or service_request"})
	}

	if r.RequestID == "" {
		errs = append(errs, FieldError{Field: "request_id", Message: "required"})
	} else if _, err := uuid.Parse(r.RequestID); err != nil {
		errs = append(errs, FieldError{Field: "request_id", Message: "must be a valid UUID"})
	}

	return errs
}

func (h *WalletHandler) Pay(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req walletPayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	requestID, _ := uuid.Parse(req.RequestID)
	p, err := h.wallets.Pay(r.Context(), service.WalletPayRequest{
		UserID:      principal.UserID,
		RequestType: domain.RequestType(req.RequestType),
		RequestID:   requestID,
	})
	if err != nil {
		log.Warn("wallet payment failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toPaymentDTO(p))
}

type withdrawRequest struct {
	Rail          string `json:"rail"`
	Amount        string `json:"amount"`
	BankAccountID string `json:"bank_account_id,omitempty"`
	PayoutAddress string `json:"payout_address,omitempty"`
}

func (r withdrawRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Rail == "" {
		errs = append(errs, FieldError{Field: "rail", Message: "required"})
	} else if rail := domain.PaymentRail(r.Rail); rail != domain.RailCard && rail != domain.RailCrypto {
		errs = append(errs, FieldError{Field: "rail", Message: "must be card or crypto"})
	}

	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if amt, err := decimal.NewFromString(r.Amount); err != nil || !amt.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive decimal"})
	}

	switch domain.PaymentRail(r.Rail) {
	case domain.RailCard:
		if r.BankAccountID == "" {
			errs = append(errs, FieldError{Field: "bank_account_id", Message: "required for the card rail"})
		}
	case domain.RailCrypto:
		if r.PayoutAddress == "" {
			errs = append(errs, FieldError{Field: "payout_address", Message: "required for the crypto rail"})
		}
	}

	return errs
}

func (r withdrawRequest) destination() string {
	if domain.PaymentRail(r.Rail) == domain.RailCrypto {
		return r.PayoutAddress
	}
	return r.BankAccountID
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)
	p, err := h.wallets.RequestWithdrawal(r.Context(), service.WithdrawalRequest{
		UserID:      principal.UserID,
		Rail:        domain.PaymentRail(req.Rail),
		Amount:      amount,
		Destination: req.destination(),
	})
	if err != nil {
		log.Warn("withdrawal request failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusAccepted, toPaymentDTO(p))
}

type walletTransactionDTO struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	Reference string    `json:"reference"`
	Narration string    `json:"narration"`
	CreatedAt time.Time `json:"created_at"`
}

type transactionPageDTO struct {
	Transactions []walletTransactionDTO `json:"transactions"`
	Total        int                    `json:"total"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}

func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := h.wallets.Transactions(r.Context(), principal.UserID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dto := transactionPageDTO{
		Transactions: make([]walletTransactionDTO, 0, len(page.Transactions)),
		Total:        page.Total,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	for i := range page.Transactions {
		t := &page.Transactions[i]
		dto.Transactions = append(dto.Transactions, walletTransactionDTO{
			ID:        t.ID,
			Type:      string(t.Type),
			Amount:    t.Amount.StringFixed(2),
			Status:    string(t.Status),
			Reference: t.Reference,
			Narration: t.Narration,
			CreatedAt: t.CreatedAt,
		})
	}
	RespondSuccess(w, http.StatusOK, dto)
}

type walletStatisticsDTO struct {
	TotalDeposits    string `json:"total_deposits"`
	TotalPayments    string `json:"total_payments"`
	TotalWithdrawals string `json:"total_withdrawals"`
	TotalRefunds     string `json:"total_refunds"`
	TransactionCount int    `json:"transaction_count"`
}

func (h *WalletHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	stats, err := h.wallets.Statistics(r.Context(), principal.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, walletStatisticsDTO{
		TotalDeposits:    stats.TotalDeposits.StringFixed(2),
		TotalPayments:    stats.TotalPayments.StringFixed(2),
		TotalWithdrawals: stats.TotalWithdrawals.StringFixed(2),
		TotalRefunds:     stats.TotalRefunds.StringFixed(2),
		TransactionCount: stats.TransactionCount,
	})
}
