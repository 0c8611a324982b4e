package service_test

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookserve/settlement/internal/domain"
	"github.com/bookserve/settlement/internal/provider"
	"github.com/bookserve/settlement/internal/repository"
	"github.com/bookserve/settlement/internal/service"
	"github.com/bookserve/settlement/internal/testutil"
)

// stubRail stands in for the card/crypto processors: intents always
// succeed, payouts are recorded, and VerifyStatus returns whatever
// event the test configured.
type stubRail struct {
	name      domain.PaymentRail
	event     *provider.Event
	payoutErr error

	mu      sync.Mutex
	payouts []provider.PayoutRequest
}

func (r *stubRail) Name() domain.PaymentRail { return r.name }

func (r *stubRail) CreateIntent(_ context.Context, req provider.IntentRequest) (*provider.Intent, error) {
	return &provider.Intent{
		Reference:   req.Reference,
		Rail:        r.name,
		ClientToken: "tok_test",
		PayAmount:   req.Amount,
	}, nil
}

func (r *stubRail) CreatePayout(_ context.Context, req provider.PayoutRequest) error {
	if r.payoutErr != nil {
		return r.payoutErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payouts = append(r.payouts, req)
	return nil
}

func (r *stubRail) VerifyStatus(_ context.Context, reference string) (*provider.Event, error) {
	ev := *r.event
	ev.Reference = reference
	return &ev, nil
}

func (r *stubRail) AuthenticateWebhook(_ []byte, _ http.Header) error { return nil }

func (r *stubRail) ParseWebhook(_ []byte) (*provider.Event, error) { return r.event, nil }

type stack struct {
	settlement *service.Settlement
	wallets    *service.WalletService
	card       *stubRail
}

func newStack(t *testing.T, db *sql.DB) *stack {
	t.Helper()

	card := &stubRail{name: domain.RailCard}
	rails := provider.NewRegistry(card)

	payments := repository.NewPaymentRepository(db)
	bookings := repository.NewBookingRepository(db)
	requests := repository.NewServiceRequestRepository(db)
	quotes := repository.NewQuoteRepository(db)
	wallets := repository.NewWalletRepository(db)
	walletTxs := repository.NewWalletTransactionRepository(db)
	events := repository.NewPaymentEventRepository(db)

	settlement := service.NewSettlement(
		payments, bookings, requests, quotes, wallets, walletTxs, events,
		rails, service.LogNotifier{}, db,
	)
	walletSvc := service.NewWalletService(
		wallets, walletTxs, payments, bookings, requests, quotes, events,
		settlement, rails, service.LogNotifier{}, db,
	)
	return &stack{settlement: settlement, wallets: walletSvc, card: card}
}

func completedEvent(reference string) *provider.Event {
	return &provider.Event{
		Reference:   reference,
		Status:      domain.PaymentStatusCompleted,
		ProviderRef: "prov_12345",
	}
}

func failedEvent(reference, reason string) *provider.Event {
	return &provider.Event{
		Reference: reference,
		Status:    domain.PaymentStatusFailed,
		Reason:    reason,
	}
}

func refundedEvent(reference, reason string) *provider.Event {
	return &provider.Event{
		Reference:   reference,
		Status:      domain.PaymentStatusRefunded,
		ProviderRef: "prov_refund_1",
		Reason:      reason,
	}
}

func initBookingPayment(t *testing.T, s *stack, booking *domain.Booking) *domain.Payment {
	t.Helper()

	res, err := s.settlement.InitializePayment(context.Background(), service.InitializePaymentRequest{
		ActorID:       booking.GuestID,
		RequestType:   domain.RequestTypeBooking,
		RequestID:     booking.ID,
		Rail:          domain.RailCard,
		Amount:        booking.Amount,
		Currency:      booking.Currency,
		CustomerEmail: "guest@test.com",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPending, res.Payment.Status)
	require.Equal(t, "tok_test", res.Intent.ClientToken)
	return res.Payment
}

func TestCompletedWebhookConfirmsBooking(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	booking := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))
	p := initBookingPayment(t, s, booking)

	updated, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, completedEvent(p.Reference))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	require.NotNil(t, updated.ProviderRef)
	assert.Equal(t, "prov_12345", *updated.ProviderRef)

	got, err := repository.NewBookingRepository(db).GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)

	events, err := repository.NewPaymentEventRepository(db).GetByPaymentID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.PaymentEventTypeCreated, events[0].EventType)
	assert.Equal(t, domain.PaymentEventTypeCompleted, events[1].EventType)
}

func TestDuplicateDeliveriesConverge(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	booking := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))
	p := initBookingPayment(t, s, booking)

	first, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, completedEvent(p.Reference))
	require.NoError(t, err)
	second, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, completedEvent(p.Reference))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, first.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, second.Status)

	events, err := repository.NewPaymentEventRepository(db).GetByPaymentID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2, "redelivery must not write a second completed event")
}

func TestFailedAfterCompletedIsIgnored(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	booking := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))
	p := initBookingPayment(t, s, booking)

	_, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, completedEvent(p.Reference))
	require.NoError(t, err)

	got, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, failedEvent(p.Reference, "late failure"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)

	b, err := repository.NewBookingRepository(db).GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
}

func TestFailedEventReleasesBooking(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	booking := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))
	p := initBookingPayment(t, s, booking)

	updated, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, failedEvent(p.Reference, "insufficient card funds"))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusFailed, updated.Status)
	require.NotNil(t, updated.FailureReason)
	assert.Equal(t, "insufficient card funds", *updated.FailureReason)

	b, err := repository.NewBookingRepository(db).GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, b.Status)
	assert.False(t, b.Status.HoldsSlot(), "failed booking releases its dates")
}

func TestProcessingEventLeavesPaymentPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	booking := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))
	p := initBookingPayment(t, s, booking)

	got, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, &provider.Event{
		Reference: p.Reference,
		Status:    domain.PaymentStatusProcessing,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, got.Status)

	b, err := repository.NewBookingRepository(db).GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPendingPayment, b.Status)
}

func TestUnknownReferenceIsReported(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)

	_, err := s.settlement.ApplyProviderEvent(context.Background(), domain.RailCard, completedEvent("BSV-"+uuid.NewString()))
	require.ErrorIs(t, err, domain.ErrUnknownReference)
}

func TestConcurrentDeliveriesClaimOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	booking := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))
	p := initBookingPayment(t, s, booking)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, completedEvent(p.Reference))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	events, err := repository.NewPaymentEventRepository(db).GetByPaymentID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2, "exactly one delivery claims the transition")
}

func TestInitializePayment_AmountMismatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	booking := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))

	_, err := s.settlement.InitializePayment(ctx, service.InitializePaymentRequest{
		ActorID:     booking.GuestID,
		RequestType: domain.RequestTypeBooking,
		RequestID:   booking.ID,
		Rail:        domain.RailCard,
		Amount:      decimal.NewFromInt(49999),
		Currency:    domain.CurrencyNGN,
	})
	require.ErrorIs(t, err, domain.ErrAmountMismatch)

	// A fractional-cent rounding difference is tolerated.
	res, err := s.settlement.InitializePayment(ctx, service.InitializePaymentRequest{
		ActorID:     booking.GuestID,
		RequestType: domain.RequestTypeBooking,
		RequestID:   booking.ID,
		Rail:        domain.RailCard,
		Amount:      decimal.RequireFromString("50000.004"),
		Currency:    domain.CurrencyNGN,
	})
	require.NoError(t, err)
	assert.True(t, res.Payment.Amount.Equal(decimal.NewFromInt(50000)),
		"payment carries the quoted amount, not the requested one")
}

func TestInitializePayment_AlreadyPaid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	booking := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))
	p := initBookingPayment(t, s, booking)

	_, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, completedEvent(p.Reference))
	require.NoError(t, err)

	_, err = s.settlement.InitializePayment(ctx, service.InitializePaymentRequest{
		ActorID:     booking.GuestID,
		RequestType: domain.RequestTypeBooking,
		RequestID:   booking.ID,
		Rail:        domain.RailCard,
		Amount:      booking.Amount,
		Currency:    booking.Currency,
	})
	require.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestRefundAfterCompletionCreditsWallet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	guestID := uuid.New()
	booking := testutil.SeedBooking(t, db, uuid.New(), guestID,
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))
	p := initBookingPayment(t, s, booking)

	_, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, completedEvent(p.Reference))
	require.NoError(t, err)

	updated, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, refundedEvent(p.Reference, "chargeback"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, updated.Status)

	// The guest had no wallet; the refund opens one and credits it.
	res, err := s.wallets.Balance(ctx, guestID)
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(decimal.NewFromInt(50000)),
		"refund credits the full amount, got %s", res.Balance)

	entry, err := repository.NewWalletTransactionRepository(db).GetByReference(ctx, "RF-"+p.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.WalletTxRefund, entry.Type)
	assert.Equal(t, domain.WalletTxCompleted, entry.Status)

	events, err := repository.NewPaymentEventRepository(db).GetByPaymentID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.PaymentEventTypeRefunded, events[2].EventType)

	// A redelivered refund must not credit twice.
	again, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, refundedEvent(p.Reference, "chargeback"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, again.Status)

	res, err = s.wallets.Balance(ctx, guestID)
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(decimal.NewFromInt(50000)))
}

func TestRefundBeforeCompletionReleasesBooking(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	booking := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))
	p := initBookingPayment(t, s, booking)

	updated, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, refundedEvent(p.Reference, "payment returned"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, updated.Status)

	b, err := repository.NewBookingRepository(db).GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, b.Status)
}

func TestRefundOnCompletedDepositIsIgnored(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	userID := uuid.New()
	testutil.SeedWallet(t, db, userID)

	res, err := s.wallets.Deposit(ctx, service.DepositRequest{
		UserID: userID,
		Rail:   domain.RailCard,
		Amount: decimal.NewFromInt(10000),
	})
	require.NoError(t, err)

	_, err = s.settlement.ApplyProviderEvent(ctx, domain.RailCard, completedEvent(res.Payment.Reference))
	require.NoError(t, err)

	// A chargeback on a settled deposit would have to debit the wallet;
	// that is manual territory, not an automatic ledger write.
	got, err := s.settlement.ApplyProviderEvent(ctx, domain.RailCard, refundedEvent(res.Payment.Reference, "chargeback"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)

	balance, err := s.wallets.Balance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(10000)))
}

func TestVerifyPaymentFallbackSettles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newStack(t, db)
	ctx := context.Background()

	booking := testutil.SeedBooking(t, db, uuid.New(), uuid.New(),
		testutil.Date(2026, 3, 10), testutil.Date(2026, 3, 15),
		domain.BookingStatusPendingPayment, decimal.NewFromInt(50000))
	p := initBookingPayment(t, s, booking)

	// The webhook never arrives; the client-triggered verify takes the
	// same transition path.
	s.card.event = completedEvent(p.Reference)

	got, err := s.settlement.VerifyPayment(ctx, domain.RailCard, p.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)

	b, err := repository.NewBookingRepository(db).GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
}
