package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shinyyama/community-backend/internal/app"
	"github.com/shinyyama/community-backend/internal/config"
	appmw "github.com/shinyyama/community-backend/internal/middleware"
	"github.com/shinyyama/community-backend/internal/observability"
	"github.com/shinyyama/community-backend/internal/realtime"
	"github.com/shinyyama/community-backend/internal/redelivery"
	"github.com/shinyyama/community-backend/internal/server"
	"github.com/shinyyama/community-backend/internal/service"
)

// Set with -ldflags at build time.
var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instruments, shutdown, err := observability.Init(ctx, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", slog.String("error", err.Error()))
		return
	}
	defer a.Close()

	verifier, err := a.Verifier()
	if err != nil {
		logger.Error("no token verifier configured", slog.String("error", err.Error()))
		return
	}

	hub := realtime.NewHub(logger)
	notes := a.NotificationService(service.WithPublisher(hub))

	var redeliver service.Redeliverer
	if tc, err := app.DialTemporal(cfg, instruments, "temporal-client"); err != nil {
		logger.Warn("Temporal unavailable, retrying notifications in process", slog.String("error", err.Error()))
		inline := redelivery.NewInline(notes, cfg.NotifyRetryAttempts, cfg.NotifyRetryInterval, logger)
		defer inline.Close()
		redeliver = inline
	} else {
		defer tc.Close()
		redeliver = redelivery.NewTemporal(tc, cfg.NotifyRetryAttempts, cfg.NotifyRetryInterval)
		logger.Info("Temporal redelivery enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	machine := service.NewStateMachine(a.Ledger, a.Roles, notes,
		service.WithLogger(logger),
		service.WithMetrics(a.Metrics),
		service.WithRedeliverer(redeliver),
	)
	instrument := []observability.Option{
		observability.WithLogger(logger),
		observability.WithTracer(instruments.Tracer("internal.service")),
		observability.WithMeter(instruments.Meter("internal.service")),
	}
	txns := observability.NewTransactionService(
		service.NewTransactionService(machine, service.NewCatalog(a.Items, a.Courses), a.Proofs, cfg.ProofMaxBytes),
		instrument...,
	)
	verification := observability.NewVerificationService(service.NewVerificationService(machine, a.Proofs), instrument...)

	srv := server.New(server.Deps{
		Transactions:  txns,
		Verification:  verification,
		Fulfillment:   service.NewFulfillmentService(machine),
		Notifications: notes,
		Revenue:       service.NewRevenueService(a.Ledger.Revenues()),
		Hub:           hub,
		Auth:          appmw.NewAuthMiddleware(verifier),
		Metrics:       promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		ProofMaxBytes: cfg.ProofMaxBytes,
		SHA:           gitSHA,
		BuildTime:     buildTime,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", addr))
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", slog.String("error", err.Error()))
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
		}
	}
}
