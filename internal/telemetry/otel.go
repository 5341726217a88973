// Package telemetry exports workflow metrics to an OTEL Collector over
// OTLP/gRPC. The Observer implements workflow.Observer and can be combined
// with the logging observer via workflow.NewCompositeObserver.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/royglick/laboneq/pkg/workflow"
)

const (
	serviceName    = "labq"
	serviceVersion = "1.0.0"
)

// Config holds OTEL exporter configuration.
type Config struct {
	Endpoint string
	Enabled  bool
	Insecure bool
}

// LoadConfig loads OTEL configuration from environment variables.
func LoadConfig() Config {
	enabled, _ := strconv.ParseBool(os.Getenv("LABQ_OTEL_ENABLED"))
	insecure, _ := strconv.ParseBool(os.Getenv("LABQ_OTEL_INSECURE"))

	return Config{
		Endpoint: os.Getenv("LABQ_OTEL_ENDPOINT"),
		Enabled:  enabled,
		Insecure: insecure,
	}
}

// Observer exports run and task metrics to an OTEL Collector.
type Observer struct {
	workflow.NoopObserver

	provider     *sdkmetric.MeterProvider
	meter        metric.Meter
	runsTotal    metric.Int64Counter
	runsFailed   metric.Int64Counter
	tasksTotal   metric.Int64Counter
	taskDuration metric.Float64Histogram
}

var _ workflow.Observer = (*Observer)(nil)

// NewObserver creates an OTEL metrics observer.
func NewObserver(ctx context.Context, cfg Config) (*Observer, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTEL observer is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	runsTotal, err := meter.Int64Counter(
		"labq_workflow_runs_total",
		metric.WithDescription("Total number of workflow runs started"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}

	runsFailed, err := meter.Int64Counter(
		"labq_workflow_runs_failed_total",
		metric.WithDescription("Total number of failed workflow runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed runs counter: %w", err)
	}

	tasksTotal, err := meter.Int64Counter(
		"labq_workflow_tasks_total",
		metric.WithDescription("Total number of task invocations"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tasks counter: %w", err)
	}

	taskDuration, err := meter.Float64Histogram(
		"labq_workflow_task_duration_seconds",
		metric.WithDescription("Task execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating task duration histogram: %w", err)
	}

	return &Observer{
		provider:     provider,
		meter:        meter,
		runsTotal:    runsTotal,
		runsFailed:   runsFailed,
		tasksTotal:   tasksTotal,
		taskDuration: taskDuration,
	}, nil
}

func (o *Observer) OnRunStart(ctx context.Context, run *workflow.Run) {
	o.runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", run.Workflow),
	))
}

func (o *Observer) OnRunFailed(ctx context.Context, run *workflow.Run, err error) {
	o.runsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", run.Workflow),
	))
}

func (o *Observer) OnTaskCompleted(ctx context.Context, run *workflow.Run, name string, it int, err error, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("workflow", run.Workflow),
		attribute.String("task", name),
		attribute.Bool("failed", err != nil),
	)
	o.tasksTotal.Add(ctx, 1, attrs)
	o.taskDuration.Record(ctx, d.Seconds(), attrs)
}

// Close shuts down the exporter and flushes any pending metrics.
func (o *Observer) Close(ctx context.Context) error {
	return o.provider.Shutdown(ctx)
}
