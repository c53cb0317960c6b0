package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	sessionsAuthorized metric.Int64Counter
	unitsSettled       metric.Int64Counter
	feeRevenue         metric.Int64Counter
	rateLimitAllowed   metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "paychunk"
	}
	meter := provider.Meter(name)

	sessionsAuthorized, err := meter.Int64Counter("paychunk_sessions_authorized_total",
		metric.WithDescription("Session authorizations, including ceiling raises."))
	if err != nil {
		return nil, err
	}
	unitsSettled, err := meter.Int64Counter("paychunk_units_settled_total",
		metric.WithDescription("Units settled, by settlement path."))
	if err != nil {
		return nil, err
	}
	feeRevenue, err := meter.Int64Counter("paychunk_fee_revenue_total",
		metric.WithDescription("Platform fees collected, in minor token units."))
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("paychunk_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("paychunk_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		sessionsAuthorized: sessionsAuthorized,
		unitsSettled:       unitsSettled,
		feeRevenue:         feeRevenue,
		rateLimitAllowed:   rateLimitAllowed,
		rateLimitDenied:    rateLimitDenied,
	}, nil
}

// RecordAuthorization counts a session authorization.
func (m *Metrics) RecordAuthorization(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsAuthorized.Add(ctx, 1)
}

// RecordSettlement counts settled units and collected fees for one path.
func (m *Metrics) RecordSettlement(ctx context.Context, path string, units uint32, fee uint64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("path", strings.TrimSpace(path)))...)
	m.unitsSettled.Add(ctx, int64(units), attrs)
	m.feeRevenue.Add(ctx, int64(fee), attrs)
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Consumer and resource identifiers never become metric labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"path":        {},
	"reason":      {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
