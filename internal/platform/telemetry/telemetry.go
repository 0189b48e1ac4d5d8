package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	applog "github.com/janisto/profile-search/internal/platform/logging"
)

const (
	metricInterval  = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// OTLP transports, named as in OTEL_EXPORTER_OTLP_PROTOCOL.
const (
	ProtocolHTTP = "http/protobuf"
	ProtocolGRPC = "grpc"
)

// ErrUnknownProtocol is returned for a protocol other than ProtocolHTTP or ProtocolGRPC.
var ErrUnknownProtocol = errors.New("unknown OTLP protocol")

// Config selects the OTLP collector. An empty Endpoint disables export.
type Config struct {
	// Endpoint is either a URL ("http://collector:4318") or host:port.
	Endpoint string
	// Protocol is ProtocolHTTP (default) or ProtocolGRPC.
	Protocol       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string
}

// ShutdownFunc flushes and stops the providers installed by Init.
type ShutdownFunc func(context.Context) error

// Init installs the W3C propagator and, when an endpoint is configured, global trace
// and meter providers exporting over OTLP (HTTP or gRPC).
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		applog.LogInfo(ctx, "telemetry export disabled")
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	traceExporter, metricExporter, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricInterval))),
	)
	otel.SetTracerProvider(traceProvider)
	otel.SetMeterProvider(meterProvider)
	applog.LogInfo(ctx, "telemetry export enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("protocol", protocol(cfg)),
	)

	return func(shutdownCtx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, shutdownTimeout)
		defer cancel()
		return errors.Join(traceProvider.Shutdown(shutdownCtx), meterProvider.Shutdown(shutdownCtx))
	}, nil
}

func protocol(cfg Config) string {
	if cfg.Protocol == "" || cfg.Protocol == "http" {
		return ProtocolHTTP
	}
	return cfg.Protocol
}

func newExporters(ctx context.Context, cfg Config) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	var (
		traceExporter  sdktrace.SpanExporter
		metricExporter sdkmetric.Exporter
		err            error
	)
	switch protocol(cfg) {
	case ProtocolHTTP:
		if traceExporter, err = otlptracehttp.New(ctx, traceOptions(cfg)...); err != nil {
			return nil, nil, fmt.Errorf("create trace exporter: %w", err)
		}
		if metricExporter, err = otlpmetrichttp.New(ctx, metricOptions(cfg)...); err != nil {
			return nil, nil, fmt.Errorf("create metric exporter: %w", err)
		}
	case ProtocolGRPC:
		if traceExporter, err = otlptracegrpc.New(ctx, traceGRPCOptions(cfg)...); err != nil {
			return nil, nil, fmt.Errorf("create trace exporter: %w", err)
		}
		if metricExporter, err = otlpmetricgrpc.New(ctx, metricGRPCOptions(cfg)...); err != nil {
			return nil, nil, fmt.Errorf("create metric exporter: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, cfg.Protocol)
	}
	return traceExporter, metricExporter, nil
}

func userAgent(cfg Config) grpc.DialOption {
	return grpc.WithUserAgent(cfg.ServiceName + "/" + cfg.ServiceVersion)
}

func isURL(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}

func traceOptions(cfg Config) []otlptracehttp.Option {
	if isURL(cfg.Endpoint) {
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.Endpoint)}
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

func metricOptions(cfg Config) []otlpmetrichttp.Option {
	if isURL(cfg.Endpoint) {
		return []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(cfg.Endpoint)}
	}
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return opts
}

func traceGRPCOptions(cfg Config) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithDialOption(userAgent(cfg))}
	if isURL(cfg.Endpoint) {
		return append(opts, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
	}
	opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

func metricGRPCOptions(cfg Config) []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithDialOption(userAgent(cfg))}
	if isURL(cfg.Endpoint) {
		return append(opts, otlpmetricgrpc.WithEndpointURL(cfg.Endpoint))
	}
	opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return opts
}
