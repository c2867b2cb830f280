// Package telemetry records lifecycle and scheduler metrics with
// OpenTelemetry. Export is optional: without an OTLP endpoint the
// instruments are backed by a no-op provider.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/roach88/muster"

// Config configures metric export.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // e.g. "localhost:4317"; empty disables export
	Insecure       bool
	Interval       time.Duration
}

// Provider owns the meter provider and the instruments built on it.
type Provider struct {
	mp      *sdkmetric.MeterProvider
	Metrics *Metrics
}

// New creates a provider. With an empty endpoint it returns no-op metrics.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.OTLPEndpoint == "" {
		m, err := NewMetrics(noop.NewMeterProvider().Meter(meterName))
		if err != nil {
			return nil, err
		}
		return &Provider{Metrics: m}, nil
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)

	m, err := NewMetrics(mp.Meter(meterName, metric.WithInstrumentationVersion(cfg.ServiceVersion)))
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "metrics export enabled", "endpoint", cfg.OTLPEndpoint, "interval", interval)
	return &Provider{mp: mp, Metrics: m}, nil
}

// Shutdown flushes pending metrics.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.mp == nil {
		return nil
	}
	return p.mp.Shutdown(ctx)
}

// Metrics holds the instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	transitions   metric.Int64Counter
	notifications metric.Int64Counter
	timers        metric.Int64Counter
	feedFetches   metric.Int64Counter
	integrity     metric.Int64Counter
	runDuration   metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.transitions, err = meter.Int64Counter("muster.event.transitions",
		metric.WithDescription("Lifecycle transitions applied, by kind")); err != nil {
		return nil, fmt.Errorf("create transitions counter: %w", err)
	}
	if m.notifications, err = meter.Int64Counter("muster.event.notifications",
		metric.WithDescription("Direct notifications sent, by result")); err != nil {
		return nil, fmt.Errorf("create notifications counter: %w", err)
	}
	if m.timers, err = meter.Int64Counter("muster.scheduler.timers",
		metric.WithDescription("One-shot timers armed, by kind")); err != nil {
		return nil, fmt.Errorf("create timers counter: %w", err)
	}
	if m.feedFetches, err = meter.Int64Counter("muster.feed.fetches",
		metric.WithDescription("Feed fetches, by source and result")); err != nil {
		return nil, fmt.Errorf("create feed counter: %w", err)
	}
	if m.integrity, err = meter.Int64Counter("muster.store.integrity_warnings",
		metric.WithDescription("Writes that affected an unexpected number of rows")); err != nil {
		return nil, fmt.Errorf("create integrity counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram("muster.job.duration",
		metric.WithDescription("Duration of periodic job runs"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return &m, nil
}

// Transition records an applied lifecycle transition (start, skip, expire, notify, attend).
func (m *Metrics) Transition(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// Notification records one direct notification attempt.
func (m *Metrics) Notification(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result(ok))))
}

// TimerArmed records a one-shot timer placed on the queue.
func (m *Metrics) TimerArmed(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.timers.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// FeedFetch records a fetch from one feed source.
func (m *Metrics) FeedFetch(ctx context.Context, source string, ok bool) {
	if m == nil {
		return
	}
	m.feedFetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("result", result(ok)),
	))
}

// IntegrityWarning records a persistence failure that was logged and swallowed.
func (m *Metrics) IntegrityWarning(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.integrity.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// JobRun records the duration of one periodic job run.
func (m *Metrics) JobRun(ctx context.Context, job string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("result", result(ok)),
	))
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
