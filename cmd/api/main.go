package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/bookserve/settlement/internal/config"
	"github.com/bookserve/settlement/internal/handler"
	"github.com/bookserve/settlement/internal/logging"
	"github.com/bookserve/settlement/internal/middleware"
	"github.com/bookserve/settlement/internal/provider"
	"github.com/bookserve/settlement/internal/repository"
	"github.com/bookserve/settlement/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("settlement-api", cfg.LogLevel, cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Repositories.
	bookings := repository.NewBookingRepository(db)
	payments := repository.NewPaymentRepository(db)
	events := repository.NewPaymentEventRepository(db)
	wallets := repository.NewWalletRepository(db)
	walletTxs := repository.NewWalletTransactionRepository(db)
	requests := repository.NewServiceRequestRepository(db)
	quotes := repository.NewQuoteRepository(db)
	vendors := repository.NewVendorRepository(db)
	replayCache := repository.NewReplayCacheRepository(db)

	// Rails.
	cardRail := provider.NewCardRail(cfg.CardRailBaseURL, cfg.CardRailSecret)
	cryptoRail := provider.NewCryptoRail(cfg.CryptoRailBaseURL, cfg.CryptoRailAPIKey, cfg.CryptoRailWebhookSecret)
	rails := provider.NewRegistry(cardRail, cryptoRail)

	// Services.
	notifier := service.LogNotifier{}
	availability := service.NewAvailabilityChecker(bookings)
	bookingSvc := service.NewBookingService(bookings, availability)
	settlement := service.NewSettlement(payments, bookings, requests, quotes, wallets, walletTxs, events, rails, notifier, db)
	walletSvc := service.NewWalletService(wallets, walletTxs, payments, bookings, requests, quotes, events, settlement, rails, notifier, db)
	quoteSvc := service.NewQuoteService(quotes, requests)
	kycSvc := service.NewKYCService(
		service.NewRegistryClient(cfg.RegistryBaseURL, cfg.RegistryAPIKey),
		service.NewNINClient(cfg.NINLookupBaseURL, cfg.NINLookupAPIKey),
		service.NewAuthAdminClient(cfg.AuthAdminBaseURL, cfg.AuthAdminAPIKey),
		vendors,
		notifier,
	)

	// Handlers.
	healthH := handler.NewHealthHandler(db)
	webhookH := handler.NewWebhookHandler(rails, settlement)
	paymentH := handler.NewPaymentHandler(settlement)
	walletH := handler.NewWalletHandler(walletSvc, settlement)
	bookingH := handler.NewBookingHandler(bookingSvc, availability)
	quoteH := handler.NewQuoteHandler(quoteSvc)
	kycH := handler.NewKYCHandler(kycSvc)

	authn := middleware.Auth(cfg.JWTSecret)
	replay := middleware.Replay(replayCache, time.Duration(cfg.ReplayCacheTTLHours)*time.Hour)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthH.Liveness)
	mux.HandleFunc("GET /health/ready", healthH.Readiness)

	// Provider callbacks authenticate with rail signatures, not JWTs.
	mux.HandleFunc("POST /webhooks/{provider}", webhookH.Receive)

	mux.Handle("POST /payment/initialize", authn(replay(http.HandlerFunc(paymentH.Initialize))))
	mux.Handle("POST /payment/check-status", authn(http.HandlerFunc(paymentH.CheckStatus)))
	mux.Handle("GET /payment/status/{reference}", authn(http.HandlerFunc(paymentH.GetStatus)))
	mux.Handle("GET /payment/request/{type}/{id}", authn(http.HandlerFunc(paymentH.GetRequestStatus)))

	mux.Handle("GET /wallet", authn(http.HandlerFunc(walletH.Get)))
	mux.Handle("POST /wallet/deposit", authn(http.HandlerFunc(walletH.Deposit)))
	mux.Handle("POST /wallet/deposit/verify", authn(http.HandlerFunc(walletH.VerifyDeposit)))
	mux.Handle("POST /wallet/pay", authn(http.HandlerFunc(walletH.Pay)))
	mux.Handle("POST /wallet/withdraw", authn(replay(http.HandlerFunc(walletH.Withdraw))))
	mux.Handle("GET /wallet/transactions", authn(http.HandlerFunc(walletH.Transactions)))
	mux.Handle("GET /wallet/statistics", authn(http.HandlerFunc(walletH.Statistics)))

	mux.Handle("POST /bookings", authn(http.HandlerFunc(bookingH.Create)))
	mux.Handle("GET /bookings/{id}", authn(http.HandlerFunc(bookingH.Get)))
	mux.Handle("POST /bookings/{id}/cancel", authn(http.HandlerFunc(bookingH.Cancel)))
	mux.Handle("GET /availability", authn(http.HandlerFunc(bookingH.CheckAvailability)))

	mux.Handle("POST /service-requests", authn(http.HandlerFunc(quoteH.CreateServiceRequest)))
	mux.Handle("GET /service-requests/{id}", authn(http.HandlerFunc(quoteH.GetServiceRequest)))
	mux.Handle("POST /quotes", authn(http.HandlerFunc(quoteH.CreateQuote)))
	mux.Handle("GET /quotes/{id}", authn(http.HandlerFunc(quoteH.Get)))
	mux.Handle("POST /quotes/{id}/send", authn(http.HandlerFunc(quoteH.Send)))
	mux.Handle("POST /quotes/{id}/accept", authn(http.HandlerFunc(quoteH.Accept)))

	mux.Handle("POST /kyc/submit", authn(http.HandlerFunc(kycH.Submit)))
	mux.Handle("GET /kyc/vendor", authn(http.HandlerFunc(kycH.GetVendor)))

	root := middleware.RequestID(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
