package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/shinyyama/community-backend/internal/app"
	"github.com/shinyyama/community-backend/internal/config"
	"github.com/shinyyama/community-backend/internal/observability"
	"github.com/shinyyama/community-backend/internal/redelivery"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	instruments, shutdown, err := observability.Init(ctx, cfg.ServiceName+"-worker", cfg.Environment)
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
	// Live push only reaches sockets held by the API process; the worker
	// stores the row and the client picks it up on its next poll.
	activities := redelivery.NewActivities(a.NotificationService())

	tc, err := app.DialTemporal(cfg, instruments, "temporal-worker")
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		return
	}
	defer tc.Close()

	w := worker.New(tc, redelivery.TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(redelivery.Workflow, workflow.RegisterOptions{Name: redelivery.WorkflowName})
	w.RegisterActivityWithOptions(activities.Deliver, activity.RegisterOptions{Name: redelivery.ActivityName})

	logger.Info("worker listening", slog.String("taskQueue", redelivery.TaskQueue), slog.String("namespace", cfg.TemporalNamespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
