// Package telemetry installs the OpenTelemetry tracer provider used by the
// gateway. Finished spans go to the structured log or, on request, to stdout.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ExporterLog    = "log"
	ExporterStdout = "stdout"
)

type Options struct {
	Enabled     bool
	ServiceName string
	// Exporter is ExporterLog (default) or ExporterStdout.
	Exporter string
	// Writer receives stdout exporter output; nil means os.Stdout.
	Writer io.Writer
}

// Setup builds a tracer provider and registers it globally. When disabled it
// installs a no-op provider. The returned function flushes pending spans.
func Setup(opts Options, log zerolog.Logger) (trace.TracerProvider, func(context.Context) error, error) {
	if !opts.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(opts, log)
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

func newExporter(opts Options, log zerolog.Logger) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case "", ExporterLog:
		return NewLogExporter(log), nil
	case ExporterStdout:
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter %q", opts.Exporter)
	}
}

// LogExporter is a SpanExporter that emits one debug entry per span, keeping
// spans in the same zerolog stream as the request logs.
type LogExporter struct {
	log zerolog.Logger
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

func NewLogExporter(log zerolog.Logger) *LogExporter {
	return &LogExporter{log: log}
}

func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		ev := e.log.Debug().
			Str("span", s.Name()).
			Str("trace_id", s.SpanContext().TraceID().String()).
			Str("span_id", s.SpanContext().SpanID().String()).
			Dur("duration", s.EndTime().Sub(s.StartTime())).
			Str("status", s.Status().Code.String())
		for _, kv := range s.Attributes() {
			ev = ev.Str(string(kv.Key), kv.Value.Emit())
		}
		ev.Msg("span")
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error { return nil }
