package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookserve/settlement/internal/domain"
)

const cardTestSecret = "card-secret"

func TestMapCardStatus(t *testing.T) {
	tests := []struct {
		in   string
		want domain.PaymentStatus
	}{
		{"success", domain.PaymentStatusCompleted},
		{"failed", domain.PaymentStatusFailed},
		{"abandoned", domain.PaymentStatusFailed},
		{"reversed", domain.PaymentStatusFailed},
		{"processing", domain.PaymentStatusProcessing},
		{"ongoing", domain.PaymentStatusProcessing},
		{"queued", domain.PaymentStatusPending},
		{"", domain.PaymentStatusPending},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, mapCardStatus(tc.in), "status %q", tc.in)
	}
}

func TestCardRail_AuthenticateWebhook(t *testing.T) {
	rail := NewCardRail("http://card.invalid", cardTestSecret)
	body := []byte(`{"event":"charge.success"}`)

	tests := []struct {
		name      string
		signature string
		wantErr   bool
	}{
		{"valid signature", SignCardWebhook(body, cardTestSecret), false},
		{"wrong secret", SignCardWebhook(body, "other-secret"), true},
		{"garbage signature", "deadbeef", true},
		{"missing signature", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header{}
			if tc.signature != "" {
				header.Set("X-Signature", tc.signature)
			}
			err := rail.AuthenticateWebhook(body, header)
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidSignature)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCardRail_ParseWebhook(t *testing.T) {
	rail := NewCardRail("http://card.invalid", cardTestSecret)

	t.Run("charge success", func(t *testing.T) {
		ev, err := rail.ParseWebhook([]byte(`{
			"event": "charge.success",
			"data": {"reference": "BSV-abc", "status": "success", "id": 42, "gateway_response": "Approved"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, "BSV-abc", ev.Reference)
		assert.Equal(t, domain.PaymentStatusCompleted, ev.Status)
		assert.Equal(t, "42", ev.ProviderRef)
		assert.Equal(t, "Approved", ev.Reason)
	})

	t.Run("refund event overrides status", func(t *testing.T) {
		ev, err := rail.ParseWebhook([]byte(`{
			"event": "refund.processed",
			"data": {"reference": "BSV-abc", "status": "success", "id": 42}
		}`))
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusRefunded, ev.Status)
	})

	t.Run("missing reference", func(t *testing.T) {
		_, err := rail.ParseWebhook([]byte(`{"event": "charge.success", "data": {"status": "success"}}`))
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := rail.ParseWebhook([]byte(`not-json`))
		require.Error(t, err)
	})
}

func TestCardRail_CreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer "+cardTestSecret, r.Header.Get("Authorization"))

		var req cardInitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "50000.00", req.Amount)
		assert.Equal(t, "NGN", req.Currency)

		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]string{"access_code": "ac_123"},
		})
	}))
	defer srv.Close()

	rail := NewCardRail(srv.URL, cardTestSecret)
	intent, err := rail.CreateIntent(context.Background(), IntentRequest{
		Reference:     "BSV-abc",
		Amount:        decimal.NewFromInt(50000),
		Currency:      domain.CurrencyNGN,
		CustomerEmail: "guest@test.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "ac_123", intent.ClientToken)
	assert.Equal(t, domain.RailCard, intent.Rail)
	assert.Empty(t, intent.RedirectURL)
}

func TestCardRail_CreatePayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transfer", r.URL.Path)
		assert.Equal(t, "Bearer "+cardTestSecret, r.Header.Get("Authorization"))

		var req cardTransferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BSV-abc", req.Reference)
		assert.Equal(t, "4000.00", req.Amount)
		assert.Equal(t, "acct_9001", req.Recipient)

		json.NewEncoder(w).Encode(map[string]any{"status": true, "message": "Transfer queued"})
	}))
	defer srv.Close()

	rail := NewCardRail(srv.URL, cardTestSecret)
	err := rail.CreatePayout(context.Background(), PayoutRequest{
		Reference:   "BSV-abc",
		Amount:      decimal.NewFromInt(4000),
		Currency:    domain.CurrencyNGN,
		Destination: "acct_9001",
	})
	require.NoError(t, err)
}

func TestCardRail_CreatePayout_ProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "recipient not found"})
	}))
	defer srv.Close()

	rail := NewCardRail(srv.URL, cardTestSecret)
	err := rail.CreatePayout(context.Background(), PayoutRequest{
		Reference:   "BSV-abc",
		Amount:      decimal.NewFromInt(4000),
		Currency:    domain.CurrencyNGN,
		Destination: "acct_missing",
	})
	require.ErrorIs(t, err, domain.ErrProvider)
}

func TestCardRail_CreateIntent_ProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "invalid merchant"})
	}))
	defer srv.Close()

	rail := NewCardRail(srv.URL, cardTestSecret)
	_, err := rail.CreateIntent(context.Background(), IntentRequest{
		Reference: "BSV-abc",
		Amount:    decimal.NewFromInt(100),
		Currency:  domain.CurrencyNGN,
	})
	require.ErrorIs(t, err, domain.ErrProvider)
}

func TestCardRail_VerifyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/BSV-abc", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"reference":        "BSV-abc",
				"status":           "success",
				"id":               42,
				"gateway_response": "Approved",
			},
		})
	}))
	defer srv.Close()

	rail := NewCardRail(srv.URL, cardTestSecret)
	ev, err := rail.VerifyStatus(context.Background(), "BSV-abc")
	require.NoError(t, err)
	assert.Equal(t, "BSV-abc", ev.Reference)
	assert.Equal(t, domain.PaymentStatusCompleted, ev.Status)
	assert.Equal(t, "42", ev.ProviderRef)
}
