package rpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/zclubweb3/solana-bridge/bridge/config"
)

// OTelConfig configures the OpenTelemetry exporters of the bridge.
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	EnableTracing bool
	UseOTLPTraces bool
	OTLPTracesURL string // host:port of the collector, e.g. localhost:4318

	EnableMetrics  bool
	UsePrometheus  bool // bridge the OTel meters into the default Prometheus registry
	UseOTLPMetrics bool
	OTLPMetricsURL string

	EnableLogs  bool
	UseOTLPLogs bool
	OTLPLogsURL string

	// InsecureOTLP sends telemetry over plain http. Local collectors only.
	InsecureOTLP   bool
	OTLPCACertFile string

	// DevelopmentMode swaps every exporter for its stdout variant.
	DevelopmentMode bool
}

func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    "solana-bridge",
		ServiceVersion: "0.1.0",
		Environment:    "LOCAL",
		OTLPTracesURL:  "localhost:4318",
		OTLPMetricsURL: "localhost:4318",
		OTLPLogsURL:    "localhost:4318",
		EnableMetrics:  true,
		UsePrometheus:  true,
	}
}

// OTelConfigFrom maps the telemetry part of the bridge config.
func OTelConfigFrom(c *config.BridgeConfig) *OTelConfig {
	otelCfg := DefaultOTelConfig()
	otelCfg.ServiceName = c.ServiceName
	if c.ServiceVersion != "" {
		otelCfg.ServiceVersion = c.ServiceVersion
	}
	otelCfg.Environment = c.Environment
	otelCfg.EnableTracing = c.EnableTracing
	otelCfg.UseOTLPTraces = c.UseOTLPTraces
	otelCfg.EnableMetrics = c.EnableMetrics
	otelCfg.UsePrometheus = c.UsePrometheus
	otelCfg.UseOTLPMetrics = c.UseOTLPMetrics
	otelCfg.EnableLogs = c.EnableLogs
	otelCfg.UseOTLPLogs = c.UseOTLPLogs
	otelCfg.InsecureOTLP = c.InsecureOTLP
	otelCfg.DevelopmentMode = c.DevelopmentMode
	for dst, src := range map[*string]string{
		&otelCfg.OTLPTracesURL:  c.OTLPTracesURL,
		&otelCfg.OTLPMetricsURL: c.OTLPMetricsURL,
		&otelCfg.OTLPLogsURL:    c.OTLPLogsURL,
	} {
		if src != "" {
			*dst = src
		}
	}
	return otelCfg
}

func (c *OTelConfig) enabled() bool {
	return c != nil && (c.EnableTracing || c.EnableMetrics || c.EnableLogs)
}

// NewOTelSDK installs the global tracer, meter and logger providers. The
// returned shutdown flushes and closes all of them.
func NewOTelSDK(ctx context.Context, cfg *OTelConfig) (func(context.Context) error, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}
	fail := func(err error) (func(context.Context) error, error) {
		return shutdown, errors.Join(err, shutdown(ctx))
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentName(cfg.Environment),
		),
	)
	if err != nil {
		return shutdown, fmt.Errorf("failed to create resource: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tlsConfig, err := otlpTLS(cfg)
	if err != nil {
		return fail(err)
	}

	if cfg.EnableTracing {
		tp, err := newTracerProvider(ctx, res, cfg, tlsConfig)
		if err != nil {
			return fail(err)
		}
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
		otel.SetTracerProvider(tp)
	}

	if cfg.EnableMetrics {
		mp, err := newMeterProvider(ctx, res, cfg, tlsConfig)
		if err != nil {
			return fail(err)
		}
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	if cfg.EnableLogs {
		lp, err := newLoggerProvider(ctx, res, cfg, tlsConfig)
		if err != nil {
			return fail(err)
		}
		shutdownFuncs = append(shutdownFuncs, lp.Shutdown)
		global.SetLoggerProvider(lp)
	}

	return shutdown, nil
}

// otlpTLS returns nil for insecure exporters and a TLS 1.2+ config, with the
// optional CA, otherwise.
func otlpTLS(cfg *OTelConfig) (*tls.Config, error) {
	if cfg.InsecureOTLP {
		return nil, nil
	}
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.OTLPCACertFile != "" {
		caCert, err := os.ReadFile(cfg.OTLPCACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA certificate")
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, cfg *OTelConfig, tlsConfig *tls.Config) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch {
	case cfg.DevelopmentMode:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case cfg.UseOTLPTraces:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPTracesURL)}
		if tlsConfig == nil {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsConfig))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		return trace.NewTracerProvider(trace.WithResource(res)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter, trace.WithBatchTimeout(5*time.Second)),
		trace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, cfg *OTelConfig, tlsConfig *tls.Config) (*metric.MeterProvider, error) {
	opts := []metric.Option{metric.WithResource(res)}

	if cfg.UsePrometheus {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(exporter))
	}

	if cfg.UseOTLPMetrics {
		var exporter metric.Exporter
		var err error
		interval := 60 * time.Second
		if cfg.DevelopmentMode {
			exporter, err = stdoutmetric.New()
			interval = 10 * time.Second
		} else {
			mopts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OTLPMetricsURL)}
			if tlsConfig == nil {
				mopts = append(mopts, otlpmetrichttp.WithInsecure())
			} else {
				mopts = append(mopts, otlpmetrichttp.WithTLSClientConfig(tlsConfig))
			}
			exporter, err = otlpmetrichttp.New(ctx, mopts...)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))))
	}

	return metric.NewMeterProvider(opts...), nil
}

func newLoggerProvider(ctx context.Context, res *resource.Resource, cfg *OTelConfig, tlsConfig *tls.Config) (*sdklog.LoggerProvider, error) {
	var exporter sdklog.Exporter
	var err error

	switch {
	case cfg.DevelopmentMode:
		exporter, err = stdoutlog.New()
	case cfg.UseOTLPLogs:
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.OTLPLogsURL)}
		if tlsConfig == nil {
			opts = append(opts, otlploghttp.WithInsecure())
		} else {
			opts = append(opts, otlploghttp.WithTLSClientConfig(tlsConfig))
		}
		exporter, err = otlploghttp.New(ctx, opts...)
	default:
		return sdklog.NewLoggerProvider(sdklog.WithResource(res)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	), nil
}
