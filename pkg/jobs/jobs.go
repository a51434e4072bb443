// Package jobs runs the server's periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/tickets"
)

const (
	// PurgeSchedule is how often expired password reset tokens are removed.
	PurgeSchedule = "@every 15m"
	// GaugeSchedule is how often the ticket status gauges are refreshed.
	GaugeSchedule = "@every 1m"
	// AuditSchedule is when audit events past retention are pruned.
	AuditSchedule = "@daily"

	// DefaultTimeout bounds a single run.
	DefaultTimeout = 30 * time.Second
)

// Func is a job body.
type Func func(ctx context.Context) error

// Scheduler wraps a cron runner. Overlapping runs of the same job are
// skipped and panics are recovered and logged.
type Scheduler struct {
	cron    *cron.Cron
	logger  *observability.Logger
	timeout time.Duration
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *observability.Logger) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		logger:  logger,
		timeout: DefaultTimeout,
	}
}

// Register adds a named job on a cron spec.
func (s *Scheduler) Register(spec, name string, fn Func) error {
	if _, err := s.cron.AddFunc(spec, s.wrap(name, fn)); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) wrap(name string, fn Func) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		log := s.logger.WithField("job", name)
		if err := fn(ctx); err != nil {
			log.WithError(err).Error("job failed")
			return
		}
		log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("job finished")
	}
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("jobs still running at shutdown")
	}
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

type cronLogger struct {
	logger *observability.Logger
}

func (l cronLogger) fields(keysAndValues []interface{}) *observability.Logger {
	log := l.logger
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			log = log.WithField(k, keysAndValues[i+1])
		}
	}
	return log
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).WithError(err).Error("cron: " + msg)
}

// ResetPurger removes expired password reset tokens.
type ResetPurger interface {
	PurgeExpiredResets(ctx context.Context) (int64, error)
}

// PurgeResets returns the reset-token purge job.
func PurgeResets(p ResetPurger, logger *observability.Logger) Func {
	return func(ctx context.Context) error {
		n, err := p.PurgeExpiredResets(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.WithField("count", n).Info("purged expired password resets")
		}
		return nil
	}
}

// StatusCounter counts tickets per status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[tickets.Status]int64, error)
}

// RefreshTicketGauges returns the job that publishes ticket counts per
// status.
func RefreshTicketGauges(c StatusCounter, metrics *observability.Metrics) Func {
	return func(ctx context.Context) error {
		counts, err := c.CountByStatus(ctx)
		if err != nil {
			return err
		}
		for status, n := range counts {
			metrics.TicketsByStatus.WithLabelValues(string(status)).Set(float64(n))
		}
		return nil
	}
}

// AuditPruner deletes audit events older than a retention window.
type AuditPruner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// PruneAudit returns the audit retention job.
func PruneAudit(p AuditPruner, retention time.Duration, logger *observability.Logger) Func {
	return func(ctx context.Context) error {
		n, err := p.Cleanup(ctx, retention)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.WithField("count", n).Info("pruned audit events")
		}
		return nil
	}
}

// Services are the dependencies of the default job set.
type Services struct {
	Resets         ResetPurger
	Tickets        StatusCounter
	Audit          AuditPruner
	AuditRetention time.Duration
	Metrics        *observability.Metrics
}

// RegisterDefaults registers the purge, retention and gauge jobs. The
// retention job needs a positive AuditRetention and the gauge job is
// skipped when metrics is nil.
func (s *Scheduler) RegisterDefaults(svc Services) error {
	if svc.Resets != nil {
		if err := s.Register(PurgeSchedule, "purge-resets", PurgeResets(svc.Resets, s.logger)); err != nil {
			return err
		}
	}
	if svc.Audit != nil && svc.AuditRetention > 0 {
		if err := s.Register(AuditSchedule, "prune-audit", PruneAudit(svc.Audit, svc.AuditRetention, s.logger)); err != nil {
			return err
		}
	}
	if svc.Metrics != nil && svc.Tickets != nil {
		return s.Register(GaugeSchedule, "ticket-gauges", RefreshTicketGauges(svc.Tickets, svc.Metrics))
	}
	return nil
}
