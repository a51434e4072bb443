// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing for the helpdesk service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.ParseLevel(cfg.Observability.LogLevel), os.Stdout)
//	logger.WithField("ticket_id", id).Info("ticket resolved")
//
// Request-scoped loggers travel in the context:
//
//	observability.FromContext(r.Context()).WithError(err).Error("save permissions")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.TicketTransitionsTotal.WithLabelValues("resolve", "Resolved").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, blobStore)
//	checker.RegisterRoutes(router)
package observability
