package service

import (
	"context"

	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/logging"
)

// Notifier is the downstream notification collaborator (email/SMS lives
// elsewhere). It is invoked only after the settlement transaction has
// committed and must never propagate failure back into settlement, so
// the methods return nothing; implementations log their own errors.
type Notifier interface {
	PaymentCompleted(ctx context.Context, p *domain.Payment)
	PaymentFailed(ctx context.Context, p *domain.Payment)
	VendorSubmitted(ctx context.Context, v *domain.VendorProfile)
}

// LogNotifier records dispatches in the log; the real delivery service
// is wired in deployments that have one.
type LogNotifier struct{}

func (LogNotifier) PaymentCompleted(ctx context.Context, p *domain.Payment) {
	logging.FromContext(ctx).Info("notification: payment completed",
		"payment_id", p.ID, "reference", p.Reference, "request_type", p.RequestType)
}

func (LogNotifier) PaymentFailed(ctx context.Context, p *domain.Payment) {
	logging.FromContext(ctx).Info("notification: payment failed",
		"payment_id", p.ID, "reference", p.Reference, "request_type", p.RequestType)
}

func (LogNotifier) VendorSubmitted(ctx context.Context, v *domain.VendorProfile) {
	logging.FromContext(ctx).Info("notification: vendor KYC submitted",
		"vendor_id", v.ID, "user_id", v.UserID, "status", v.Status)
}
