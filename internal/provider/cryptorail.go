package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookserve/settlement/internal/domain"
)

const cryptoSignatureHeader = "X-Provider-Sig"

// CryptoRail creates invoices against the crypto processor at a fixed
// exchange rate and fee policy. Settlement is provider-redirected, so
// intents carry a redirect URL instead of an inline token. Webhooks are
// authenticated by the token the provider registered for this webhook.
type CryptoRail struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
}

func NewCryptoRail(baseURL, apiKey, webhookSecret string) *CryptoRail {
	return &CryptoRail{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *CryptoRail) Name() domain.PaymentRail { return domain.RailCrypto }

type cryptoInvoiceRequest struct {
	OrderID       string `json:"order_id"`
	PriceAmount   string `json:"price_amount"`
	PriceCurrency string `json:"price_currency"`
	PayCurrency   string `json:"pay_currency"`
	FixedRate     bool   `json:"fixed_rate"`
	FeePaidByUser bool   `json:"is_fee_paid_by_user"`
}

type cryptoInvoiceResponse struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoice_url"`
	PayAmount  string `json:"pay_amount"`
	PayCurrency string `json:"pay_currency"`
}

func (c *CryptoRail) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.PayCurrency == "" {
		return nil, fmt.Errorf("CreateIntent: pay currency required for crypto rail: %w", domain.ErrValidation)
	}

	payload := cryptoInvoiceRequest{
		OrderID:       req.Reference,
		PriceAmount:   req.Amount.StringFixed(2),
		PriceCurrency: string(req.Currency),
		PayCurrency:   req.PayCurrency,
		FixedRate:     true,
		FeePaidByUser: true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoice", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: %w: %v", domain.ErrProvider, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("CreateIntent: status %d: %s: %w", httpResp.StatusCode, respBody, domain.ErrProvider)
	}

	var resp cryptoInvoiceResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("CreateIntent: decode: %w", err)
	}

	payAmount, err := decimal.NewFromString(resp.PayAmount)
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: bad pay_amount %q: %w", resp.PayAmount, err)
	}

	return &Intent{
		Reference:   req.Reference,
		Rail:        domain.RailCrypto,
		RedirectURL: resp.InvoiceURL,
		PayCurrency: resp.PayCurrency,
		PayAmount:   payAmount,
	}, nil
}

type cryptoPayoutRequest struct {
	OrderID  string `json:"order_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Address  string `json:"address"`
}

func (c *CryptoRail) CreatePayout(ctx context.Context, req PayoutRequest) error {
	payload := cryptoPayoutRequest{
		OrderID:  req.Reference,
		Amount:   req.Amount.StringFixed(2),
		Currency: string(req.Currency),
		Address:  req.Destination,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("CreatePayout: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payout", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("CreatePayout: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("CreatePayout: %w: %v", domain.ErrProvider, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return fmt.Errorf("CreatePayout: status %d: %s: %w", httpResp.StatusCode, respBody, domain.ErrProvider)
	}
	return nil
}

type cryptoStatusResponse struct {
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	PaymentStatus string `json:"payment_status"`
}

func (c *CryptoRail) VerifyStatus(ctx context.Context, reference string) (*Event, error) {
	url := c.baseURL + "/payment?order_id=" + reference
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("VerifyStatus: build request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("VerifyStatus: %w: %v", domain.ErrProvider, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("VerifyStatus: status %d: %s: %w", httpResp.StatusCode, respBody, domain.ErrProvider)
	}

	var resp cryptoStatusResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("VerifyStatus: decode: %w", err)
	}

	return &Event{
		Reference:   resp.OrderID,
		Status:      mapCryptoStatus(resp.PaymentStatus),
		ProviderRef: resp.PaymentID,
		Reason:      resp.PaymentStatus,
	}, nil
}

func (c *CryptoRail) AuthenticateWebhook(body []byte, header http.Header) error {
	token := header.Get(cryptoSignatureHeader)
	if token == "" {
		return fmt.Errorf("AuthenticateWebhook: missing token: %w", domain.ErrInvalidSignature)
	}
	if !hmac.Equal([]byte(token), []byte(c.webhookSecret)) {
		return fmt.Errorf("AuthenticateWebhook: %w", domain.ErrInvalidSignature)
	}
	return nil
}

type cryptoWebhookPayload struct {
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	PaymentStatus string `json:"payment_status"`
}

func (c *CryptoRail) ParseWebhook(body []byte) (*Event, error) {
	var payload cryptoWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("ParseWebhook: %w", err)
	}
	if payload.OrderID == "" {
		return nil, fmt.Errorf("ParseWebhook: missing order_id: %w", domain.ErrValidation)
	}

	return &Event{
		Reference:   payload.OrderID,
		Status:      mapCryptoStatus(payload.PaymentStatus),
		ProviderRef: payload.PaymentID,
		Reason:      payload.PaymentStatus,
	}, nil
}

// partially_paid and confirming are non-terminal: the reconciler logs
// them without transitioning.
func mapCryptoStatus(s string) domain.PaymentStatus {
	switch s {
	case "finished":
		return domain.PaymentStatusCompleted
	case "failed", "expired":
		return domain.PaymentStatusFailed
	case "refunded":
		return domain.PaymentStatusRefunded
	case "partially_paid", "confirming", "sending":
		return domain.PaymentStatusProcessing
	default:
		return domain.PaymentStatusPending
	}
}

var _ Rail = (*CryptoRail)(nil)
