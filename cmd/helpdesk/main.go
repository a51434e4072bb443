package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/helpdesk/pkg/api"
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/config"
	"github.com/platinummonkey/helpdesk/pkg/jobs"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/storage/postgres"
	"github.com/platinummonkey/helpdesk/pkg/users"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	migrateFirst := flag.Bool("migrate", false, "Apply pending schema migrations before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.Observability.LogLevel), os.Stdout)
	logger = logger.WithField("service", "helpdesk")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *configPath != "" {
		err := config.Watch(*configPath, func(next *config.Config, err error) {
			if err != nil {
				logger.WithError(err).Warn("Ignoring invalid configuration change")
				return
			}
			logger.SetLevel(observability.ParseLevel(next.Observability.LogLevel))
			logger.WithField("level", next.Observability.LogLevel).Info("Log level reloaded")
		})
		if err != nil {
			logger.WithError(err).Warn("Configuration watch unavailable")
		}
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    "helpdesk",
		ServiceVersion: version,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("OpenTelemetry unavailable, continuing without tracing")
	}

	if *migrateFirst {
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		logger.Info("Database migrations applied")
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("Database connected")

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		logger.Info("Redis connected")
	}

	blobs, err := postgres.NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize attachment storage: %v", err)
	}
	logger.WithField("type", cfg.Storage.Type).Info("Attachment storage initialized")

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
		postgres.ReportPoolStats(ctx, db, metrics, 0, logger)
	}

	auditDB, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to create audit logger: %v", err)
	}
	auditLogger := audit.NewMultiLogger(auditDB, audit.NewStreamLogger(logger.WithField("stream", "audit")))

	srv, err := api.NewServer(ctx, api.Deps{
		Config:     cfg,
		DB:         db,
		Redis:      redisClient,
		Blobs:      blobs,
		Logger:     logger,
		Metrics:    metrics,
		Registry:   registry,
		Audit:      auditLogger,
		AuditStore: auditDB,
		Notifier:   users.NewLogNotifier(logger),
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(logger)
		err := scheduler.RegisterDefaults(jobs.Services{
			Resets:         srv.Auth,
			Tickets:        srv.Tickets,
			Audit:          auditDB,
			AuditRetention: cfg.Jobs.AuditRetention,
			Metrics:        metrics,
		})
		if err != nil {
			log.Fatalf("Failed to schedule jobs: %v", err)
		}
		scheduler.Start()
		logger.WithField("jobs", scheduler.Entries()).Info("Background jobs started")
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	if scheduler != nil {
		shutdown.RegisterShutdownFunc("jobs", func(ctx context.Context) error {
			scheduler.Stop(ctx)
			return nil
		})
	}
	shutdown.RegisterShutdownFunc("audit", func(context.Context) error {
		return auditLogger.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc("database", func(context.Context) error {
		cancel()
		return db.Close()
	})
	shutdown.RegisterShutdownFunc("otel", otelProviders.Shutdown)

	go func() {
		logger.WithField("addr", httpServer.Addr).Infof("Starting helpdesk %s", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
