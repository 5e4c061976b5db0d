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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corepay/ledger-service/internal/config"
	"github.com/corepay/ledger-service/internal/handler"
	"github.com/corepay/ledger-service/internal/logging"
	"github.com/corepay/ledger-service/internal/middleware"
	"github.com/corepay/ledger-service/internal/provider"
	"github.com/corepay/ledger-service/internal/repository"
	"github.com/corepay/ledger-service/internal/service"
	"github.com/corepay/ledger-service/internal/service/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("ledger-api", cfg.LogLevel, cfg.AppEnv)

	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.NewPostgresDB(connectCtx, cfg.DatabaseURL, repository.PoolConfig{
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

	store := repository.NewStore(db)

	registry := provider.NewRegistry(
		provider.NewStripeGateway(cfg.StripeWebhookSecret),
		provider.NewPartnerBankGateway(cfg.PartnerProviderCode, cfg.PartnerCallbackToken),
	)

	reconciler := reconcile.New(store, logger)
	txSvc := service.NewTransactionService(store, logger)

	txHandler := handler.NewTransactionHandler(txSvc)
	webhookHandler := handler.NewWebhookHandler(registry, reconciler)
	healthHandler := handler.NewHealthHandler(db)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /webhooks/{provider}", webhookHandler.Receive)

	mux.HandleFunc("POST /api/v1/transactions/deposit", txHandler.InitiateDeposit)
	mux.HandleFunc("POST /api/v1/transactions/withdrawal", txHandler.InitiateWithdrawal)
	mux.HandleFunc("POST /api/v1/transactions/transfer", txHandler.InitiateTransfer)
	mux.HandleFunc("POST /api/v1/transactions/{id}/refund", txHandler.InitiateRefund)
	mux.HandleFunc("POST /api/v1/transactions/{id}/cancel", txHandler.Cancel)
	mux.HandleFunc("POST /api/v1/transactions/{id}/confirm", txHandler.Confirm)
	mux.HandleFunc("GET /api/v1/transactions", txHandler.List)
	mux.HandleFunc("GET /api/v1/transactions/{id}", txHandler.Get)
	mux.HandleFunc("GET /api/v1/transactions/{id}/entries", txHandler.Entries)
	mux.HandleFunc("GET /api/v1/accounts/{id}/transactions", txHandler.ListByAccount)
	mux.HandleFunc("GET /api/v1/accounts/{id}/entries", txHandler.AccountEntries)

	var root http.Handler = mux
	root = middleware.Recovery(root)
	root = middleware.Metrics(root)
	root = middleware.Logging(root)
	root = middleware.Tracing(root)

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
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
