package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookserve/settlement/internal/domain"
)

type fakeBusinessRegistry struct {
	outcome *CheckOutcome
	err     error
	calls   int
}

func (f *fakeBusinessRegistry) VerifyBusiness(_ context.Context, _, _ string) (*CheckOutcome, error) {
	f.calls++
	return f.outcome, f.err
}

type fakeNINVerifier struct {
	outcome *CheckOutcome
	err     error
	calls   int
}

func (f *fakeNINVerifier) VerifyNIN(_ context.Context, _ string) (*CheckOutcome, error) {
	f.calls++
	return f.outcome, f.err
}

type fakeIdentityAdmin struct {
	deleted []uuid.UUID
	err     error
}

func (f *fakeIdentityAdmin) DeleteIdentity(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

type fakeVendorStore struct {
	upserted *domain.VendorProfile
	byUser   map[uuid.UUID]*domain.VendorProfile
}

func (f *fakeVendorStore) Upsert(_ context.Context, v *domain.VendorProfile) error {
	f.upserted = v
	return nil
}

func (f *fakeVendorStore) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.VendorProfile, error) {
	v, ok := f.byUser[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

type recordingNotifier struct {
	completed []*domain.Payment
	failed    []*domain.Payment
	vendors   []*domain.VendorProfile
}

func (n *recordingNotifier) PaymentCompleted(_ context.Context, p *domain.Payment) {
	n.completed = append(n.completed, p)
}

func (n *recordingNotifier) PaymentFailed(_ context.Context, p *domain.Payment) {
	n.failed = append(n.failed, p)
}

func (n *recordingNotifier) VendorSubmitted(_ context.Context, v *domain.VendorProfile) {
	n.vendors = append(n.vendors, v)
}

func validKYCRequest() SubmitKYCRequest {
	return SubmitKYCRequest{
		UserID:          uuid.New(),
		BusinessName:    "Acme Logistics Ltd",
		RegistrationNum: "RC123456",
		NIN:             "12345678901",
		Address:         "12 Marina Rd, Lagos",
	}
}

func passing(name string) *CheckOutcome {
	return &CheckOutcome{Passed: true, MatchedAs: name}
}

func TestSubmitKYC_AllChecksPass(t *testing.T) {
	registry := &fakeBusinessRegistry{outcome: passing("ACME LOGISTICS LTD")}
	nin := &fakeNINVerifier{outcome: passing("ADA OBI")}
	identity := &fakeIdentityAdmin{}
	vendors := &fakeVendorStore{}
	notifier := &recordingNotifier{}

	svc := NewKYCService(registry, nin, identity, vendors, notifier)
	req := validKYCRequest()

	profile, err := svc.SubmitKYC(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.VendorStatusApproved, profile.Status)
	assert.True(t, profile.Approved)
	require.Len(t, profile.Verifications, 2)
	assert.Equal(t, "cac", profile.Verifications[0].Check)
	assert.Equal(t, "nin", profile.Verifications[1].Check)

	assert.Equal(t, 1, registry.calls)
	assert.Equal(t, 1, nin.calls)
	require.NotNil(t, vendors.upserted)
	assert.Len(t, notifier.vendors, 1)
	assert.Empty(t, identity.deleted)
}

func TestSubmitKYC_CACFailureShortCircuits(t *testing.T) {
	registry := &fakeBusinessRegistry{outcome: &CheckOutcome{Passed: false, Reason: "name mismatch"}}
	nin := &fakeNINVerifier{outcome: passing("ADA OBI")}
	identity := &fakeIdentityAdmin{}
	vendors := &fakeVendorStore{}

	svc := NewKYCService(registry, nin, identity, vendors, &recordingNotifier{})

	_, err := svc.SubmitKYC(context.Background(), validKYCRequest())
	require.Error(t, err)

	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cac", verr.Check)
	assert.Equal(t, "name mismatch", verr.Reason)

	assert.Equal(t, 0, nin.calls, "NIN check must not run after CAC failure")
	assert.Nil(t, vendors.upserted, "no profile persisted on failure")
}

func TestSubmitKYC_NINProviderDown(t *testing.T) {
	registry := &fakeBusinessRegistry{outcome: passing("ACME LOGISTICS LTD")}
	nin := &fakeNINVerifier{err: errors.New("connection refused")}
	vendors := &fakeVendorStore{}

	svc := NewKYCService(registry, nin, &fakeIdentityAdmin{}, vendors, &recordingNotifier{})

	_, err := svc.SubmitKYC(context.Background(), validKYCRequest())
	require.Error(t, err)

	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "nin", verr.Check)
	assert.Nil(t, vendors.upserted)
}

func TestSubmitKYC_CompensatesOnlyOwnedIdentity(t *testing.T) {
	identityID := uuid.New()

	tests := []struct {
		name              string
		createdIdentityID *uuid.UUID
		wantDeleted       []uuid.UUID
	}{
		{"identity created by this submission is deleted", &identityID, []uuid.UUID{identityID}},
		{"pre-existing identity is never touched", nil, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			registry := &fakeBusinessRegistry{outcome: &CheckOutcome{Passed: false, Reason: "not found"}}
			identity := &fakeIdentityAdmin{}

			svc := NewKYCService(registry, &fakeNINVerifier{}, identity, &fakeVendorStore{}, &recordingNotifier{})

			req := validKYCRequest()
			req.CreatedIdentityID = tc.createdIdentityID

			_, err := svc.SubmitKYC(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tc.wantDeleted, identity.deleted)
		})
	}
}

func TestSubmitKYC_CompensationFailureDoesNotMaskError(t *testing.T) {
	identityID := uuid.New()
	registry := &fakeBusinessRegistry{outcome: &CheckOutcome{Passed: false, Reason: "not found"}}
	identity := &fakeIdentityAdmin{err: errors.New("auth backend down")}

	svc := NewKYCService(registry, &fakeNINVerifier{}, identity, &fakeVendorStore{}, &recordingNotifier{})

	req := validKYCRequest()
	req.CreatedIdentityID = &identityID

	_, err := svc.SubmitKYC(context.Background(), req)

	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cac", verr.Check, "caller still sees the check that failed")
}

func TestSubmitKYC_MissingFields(t *testing.T) {
	svc := NewKYCService(&fakeBusinessRegistry{}, &fakeNINVerifier{}, &fakeIdentityAdmin{}, &fakeVendorStore{}, &recordingNotifier{})

	req := validKYCRequest()
	req.NIN = ""

	_, err := svc.SubmitKYC(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrValidation)
}
