// Package app builds the collaborators shared by the binaries under cmd/.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	"github.com/shinyyama/community-backend/internal/config"
	"github.com/shinyyama/community-backend/internal/db"
	appmw "github.com/shinyyama/community-backend/internal/middleware"
	"github.com/shinyyama/community-backend/internal/observability"
	"github.com/shinyyama/community-backend/internal/repository"
	"github.com/shinyyama/community-backend/internal/repository/memory"
	"github.com/shinyyama/community-backend/internal/service"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger

	Ledger        repository.Ledger
	Notifications repository.NotificationRepository
	Items         repository.ItemRepository
	Courses       repository.CourseRepository

	// Auth is nil when FIREBASE_PROJECT_ID is not set.
	Auth      *auth.Client
	Proofs    service.ProofStorage
	Roles     service.Authorizer
	Directory service.Directory

	Registry *prometheus.Registry
	Metrics  *observability.Prometheus

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.openStore(); err != nil {
		return nil, err
	}
	if err := a.openFirebase(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewPrometheus(a.Registry)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Metrics = metrics
	return a, nil
}

func (a *App) openStore() error {
	if a.Config.DBDriver == config.DriverMemory {
		a.Logger.Warn("DB_DRIVER=memory, state is lost on restart")
		a.Ledger = memory.NewLedger()
		a.Notifications = memory.NewNotifications()
		a.Items = memory.NewItems()
		a.Courses = memory.NewCourses()
		return nil
	}
	gdb, err := db.Connect(a.Config)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate db: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, sqlDB.Close)
	a.Ledger = repository.NewLedger(gdb)
	a.Notifications = repository.NewNotificationRepository(gdb)
	a.Items = repository.NewItemRepository(gdb)
	a.Courses = repository.NewCourseRepository(gdb)
	a.Logger.Info("ledger configured", slog.String("driver", a.Config.DBDriver))
	return nil
}

func (a *App) openFirebase(ctx context.Context) error {
	static := service.NewStaticAuthorizer(a.Config.AdminUIDs)
	a.Roles = static
	a.Directory = service.AllowAllDirectory()
	a.Proofs = service.NewMemoryProofStorage()

	if a.Config.FirebaseProjectID != "" {
		fb, err := firebase.NewApp(ctx, &firebase.Config{
			ProjectID:     a.Config.FirebaseProjectID,
			StorageBucket: a.Config.StorageBucket,
		})
		if err != nil {
			return fmt.Errorf("init firebase: %w", err)
		}
		client, err := fb.Auth(ctx)
		if err != nil {
			return fmt.Errorf("init firebase auth: %w", err)
		}
		a.Auth = client
		a.Roles = service.NewFirebaseAuthorizer(client, static)
		a.Directory = service.NewFirebaseDirectory(client)
	} else {
		a.Logger.Warn("FIREBASE_PROJECT_ID not set, using static admin list and accepting every recipient")
	}

	if a.Config.StorageBucket != "" {
		sc, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		a.closers = append(a.closers, sc.Close)
		a.Proofs = service.NewGCSProofStorage(sc, a.Config.StorageBucket)
	} else {
		a.Logger.Warn("STORAGE_BUCKET not set, payment proofs are kept in memory")
	}
	return nil
}

// NotificationService builds the dispatcher on top of the configured store
// and directory.
func (a *App) NotificationService(opts ...service.NotificationOption) service.NotificationService {
	base := []service.NotificationOption{
		service.WithDirectory(a.Directory),
		service.WithNotificationMetrics(a.Metrics),
	}
	return service.NewNotificationService(a.Notifications, append(base, opts...)...)
}

// Verifier prefers Firebase ID tokens and falls back to HS256 tokens.
func (a *App) Verifier() (appmw.TokenVerifier, error) {
	if a.Auth != nil {
		return appmw.NewFirebaseVerifier(a.Auth), nil
	}
	if a.Config.JWTSecret != "" {
		return appmw.NewHMACVerifier(a.Config.JWTSecret), nil
	}
	return nil, errors.New("either FIREBASE_PROJECT_ID or AUTH_JWT_SECRET must be set")
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// DialTemporal connects a client with tracing and structured logging.
func DialTemporal(cfg *config.Config, instruments *observability.Instruments, component string) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{
		Tracer: instruments.Tracer(component),
	})
	if err != nil {
		return nil, err
	}
	logger := slog.Default()
	if instruments != nil && instruments.Logger != nil {
		logger = instruments.Logger
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}
