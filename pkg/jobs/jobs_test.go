package jobs

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/tickets"
)

type fakePurger struct {
	n   int64
	err error
}

func (f fakePurger) PurgeExpiredResets(context.Context) (int64, error) {
	return f.n, f.err
}

type fakePruner struct {
	got time.Duration
}

func (f *fakePruner) Cleanup(_ context.Context, retention time.Duration) (int64, error) {
	f.got = retention
	return 2, nil
}

type fakeCounter map[tickets.Status]int64

func (f fakeCounter) CountByStatus(context.Context) (map[tickets.Status]int64, error) {
	return f, nil
}

func testLogger() (*observability.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return observability.NewLogger(observability.DebugLevel, &buf), &buf
}

func TestPurgeResets(t *testing.T) {
	logger, buf := testLogger()

	require.NoError(t, PurgeResets(fakePurger{n: 3}, logger)(context.Background()))
	assert.Contains(t, buf.String(), "purged expired password resets")

	err := PurgeResets(fakePurger{err: errors.New("db down")}, logger)(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestPruneAudit(t *testing.T) {
	logger, buf := testLogger()
	p := &fakePruner{}

	require.NoError(t, PruneAudit(p, 48*time.Hour, logger)(context.Background()))
	assert.Equal(t, 48*time.Hour, p.got)
	assert.Contains(t, buf.String(), "pruned audit events")
}

func TestRefreshTicketGauges(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	counts := fakeCounter{tickets.StatusOpen: 4, tickets.StatusResolved: 9}

	require.NoError(t, RefreshTicketGauges(counts, metrics)(context.Background()))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.TicketsByStatus.WithLabelValues("Open")))
	assert.Equal(t, 9.0, testutil.ToFloat64(metrics.TicketsByStatus.WithLabelValues("Resolved")))
}

func TestScheduler_Register(t *testing.T) {
	logger, _ := testLogger()
	s := NewScheduler(logger)

	assert.Error(t, s.Register("every now and then", "bad", func(context.Context) error { return nil }))

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, s.RegisterDefaults(Services{
		Resets:         fakePurger{},
		Tickets:        fakeCounter{},
		Audit:          &fakePruner{},
		AuditRetention: 24 * time.Hour,
		Metrics:        metrics,
	}))
	assert.Equal(t, 3, s.Entries())

	s.Start()
	s.Stop(context.Background())
}

func TestScheduler_RegisterDefaultsWithoutMetrics(t *testing.T) {
	logger, _ := testLogger()
	s := NewScheduler(logger)
	require.NoError(t, s.RegisterDefaults(Services{Resets: fakePurger{}, Tickets: fakeCounter{}}))
	assert.Equal(t, 1, s.Entries())
}

func TestScheduler_WrapLogsFailure(t *testing.T) {
	logger, buf := testLogger()
	s := NewScheduler(logger)

	s.wrap("purge-resets", func(context.Context) error { return errors.New("boom") })()
	assert.Contains(t, buf.String(), "job failed")
	assert.Contains(t, buf.String(), "purge-resets")
}
