package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds the OpenTelemetry instruments pushed over OTLP. They
// come from the global meter provider, so they are no-ops until InitOTel
// has run.
type OTelMetrics struct {
	reportExports        metric.Int64Counter
	reportExportDuration metric.Float64Histogram
	reportExportSize     metric.Int64Histogram
	reportExportRows     metric.Int64Histogram
}

// NewOTelMetrics creates the instruments on the global meter provider.
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/helpdesk")

	m := &OTelMetrics{}
	var err error

	m.reportExports, err = meter.Int64Counter(
		"helpdesk.report.exports",
		metric.WithDescription("Ticket report exports served"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report exports counter: %w", err)
	}

	m.reportExportDuration, err = meter.Float64Histogram(
		"helpdesk.report.export.duration",
		metric.WithDescription("Time spent rendering a ticket report export"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report export duration histogram: %w", err)
	}

	m.reportExportSize, err = meter.Int64Histogram(
		"helpdesk.report.export.size",
		metric.WithDescription("Size of a rendered ticket report export"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report export size histogram: %w", err)
	}

	m.reportExportRows, err = meter.Int64Histogram(
		"helpdesk.report.export.rows",
		metric.WithDescription("Tickets included in a ticket report export"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report export rows histogram: %w", err)
	}

	return m, nil
}

// RecordExport records one rendered export. A nil receiver does nothing.
func (m *OTelMetrics) RecordExport(ctx context.Context, format string, rows int, size int64, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("report.format", format))

	m.reportExports.Add(ctx, 1, attrs)
	m.reportExportDuration.Record(ctx, duration.Seconds(), attrs)
	m.reportExportSize.Record(ctx, size, attrs)
	m.reportExportRows.Record(ctx, int64(rows), attrs)
}
