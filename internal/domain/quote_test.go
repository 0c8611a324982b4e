package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuoteEffectiveStatus(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name       string
		status     QuoteStatus
		validUntil time.Time
		want       QuoteStatus
	}{
		{"sent and valid", QuoteStatusSent, now.Add(time.Hour), QuoteStatusSent},
		{"sent and lapsed", QuoteStatusSent, now.Add(-time.Minute), QuoteStatusExpired},
		{"draft and lapsed", QuoteStatusDraft, now.Add(-time.Minute), QuoteStatusExpired},
		{"accepted stays accepted past expiry", QuoteStatusAccepted, now.Add(-time.Hour), QuoteStatusAccepted},
		{"valid_until exactly now counts as lapsed", QuoteStatusSent, now, QuoteStatusExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := &Quote{Status: tc.status, ValidUntil: tc.validUntil}
			assert.Equal(t, tc.want, q.EffectiveStatus(now))
		})
	}
}

func TestQuotePayable(t *testing.T) {
	now := time.Now().UTC()

	accepted := &Quote{Status: QuoteStatusAccepted, ValidUntil: now.Add(-time.Hour)}
	assert.True(t, accepted.Payable(now), "acceptance locks the price in")

	sent := &Quote{Status: QuoteStatusSent, ValidUntil: now.Add(time.Hour)}
	assert.False(t, sent.Payable(now))

	lapsed := &Quote{Status: QuoteStatusSent, ValidUntil: now.Add(-time.Hour)}
	assert.False(t, lapsed.Payable(now))
}
