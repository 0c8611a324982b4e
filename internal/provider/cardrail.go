package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bookserve/settlement/internal/domain"
)

const cardSignatureHeader = "X-Signature"

// CardRail talks to the card processor. Intents carry a client token
// consumed by the inline checkout widget; webhooks are authenticated by
// an HMAC-SHA512 of the raw body under the shared secret.
type CardRail struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func NewCardRail(baseURL, secret string) *CardRail {
	return &CardRail{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *CardRail) Name() domain.PaymentRail { return domain.RailCard }

type cardInitRequest struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Email     string `json:"email"`
}

type cardInitResponse struct {
	Status bool `json:"status"`
	Data   struct {
		AccessCode string `json:"access_code"`
	} `json:"data"`
	Message string `json:"message"`
}

func (c *CardRail) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	payload := cardInitRequest{
		Reference: req.Reference,
		Amount:    req.Amount.StringFixed(2),
		Currency:  string(req.Currency),
		Email:     req.CustomerEmail,
	}

	var resp cardInitResponse
	if err := c.post(ctx, "/transaction/initialize", payload, &resp); err != nil {
		return nil, fmt.Errorf("CreateIntent: %w", err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("CreateIntent: %s: %w", resp.Message, domain.ErrProvider)
	}

	return &Intent{
		Reference:   req.Reference,
		Rail:        domain.RailCard,
		ClientToken: resp.Data.AccessCode,
		PayAmount:   req.Amount,
	}, nil
}

type cardTransferRequest struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Recipient string `json:"recipient"`
}

type cardTransferResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

func (c *CardRail) CreatePayout(ctx context.Context, req PayoutRequest) error {
	payload := cardTransferRequest{
		Reference: req.Reference,
		Amount:    req.Amount.StringFixed(2),
		Currency:  string(req.Currency),
		Recipient: req.Destination,
	}

	var resp cardTransferResponse
	if err := c.post(ctx, "/transfer", payload, &resp); err != nil {
		return fmt.Errorf("CreatePayout: %w", err)
	}
	if !resp.Status {
		return fmt.Errorf("CreatePayout: %s: %w", resp.Message, domain.ErrProvider)
	}
	return nil
}

type cardVerifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Reference       string `json:"reference"`
		Status          string `json:"status"`
		ID              int64  `json:"id"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
	Message string `json:"message"`
}

func (c *CardRail) VerifyStatus(ctx context.Context, reference string) (*Event, error) {
	url := c.baseURL + "/transaction/verify/" + reference
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("VerifyStatus: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secret)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("VerifyStatus: %w: %v", domain.ErrProvider, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("VerifyStatus: status %d: %s: %w", httpResp.StatusCode, body, domain.ErrProvider)
	}

	var resp cardVerifyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("VerifyStatus: decode: %w", err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("VerifyStatus: %s: %w", resp.Message, domain.ErrProvider)
	}

	return &Event{
		Reference:   resp.Data.Reference,
		Status:      mapCardStatus(resp.Data.Status),
		ProviderRef: fmt.Sprintf("%d", resp.Data.ID),
		Reason:      resp.Data.GatewayResponse,
	}, nil
}

func (c *CardRail) AuthenticateWebhook(body []byte, header http.Header) error {
	sig := header.Get(cardSignatureHeader)
	if sig == "" {
		return fmt.Errorf("AuthenticateWebhook: missing signature: %w", domain.ErrInvalidSignature)
	}

	mac := hmac.New(sha512.New, []byte(c.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("AuthenticateWebhook: %w", domain.ErrInvalidSignature)
	}
	return nil
}

type cardWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference       string `json:"reference"`
		Status          string `json:"status"`
		ID              int64  `json:"id"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
}

func (c *CardRail) ParseWebhook(body []byte) (*Event, error) {
	var payload cardWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("ParseWebhook: %w", err)
	}
	if payload.Data.Reference == "" {
		return nil, fmt.Errorf("ParseWebhook: missing reference: %w", domain.ErrValidation)
	}

	status := mapCardStatus(payload.Data.Status)
	if payload.Event == "refund.processed" {
		status = domain.PaymentStatusRefunded
	}

	return &Event{
		Reference:   payload.Data.Reference,
		Status:      status,
		ProviderRef: fmt.Sprintf("%d", payload.Data.ID),
		Reason:      payload.Data.GatewayResponse,
	}, nil
}

func mapCardStatus(s string) domain.PaymentStatus {
	switch s {
	case "success":
		return domain.PaymentStatusCompleted
	case "failed", "abandoned", "reversed":
		return domain.PaymentStatusFailed
	case "processing", "ongoing":
		return domain.PaymentStatusProcessing
	default:
		return domain.PaymentStatusPending
	}
}

func (c *CardRail) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("post: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post: %w: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post: status %d: %s: %w", resp.StatusCode, respBody, domain.ErrProvider)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("post: decode: %w", err)
	}
	return nil
}

var _ Rail = (*CardRail)(nil)

// SignCardWebhook builds the signature the card processor would attach;
// tests and the sandbox rail binary use it to emit valid webhooks.
func SignCardWebhook(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
