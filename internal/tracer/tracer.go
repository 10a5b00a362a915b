// Package tracer provides the tracing abstraction wrapped around every
// executed statement. It adapts OpenTelemetry and accepts custom tracers.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer defines the tracing interface.
type Tracer interface {
	// StartSpan starts a new tracing span with the given name
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span that captures the execution of an operation.
type Span interface {
	// SetAttributes sets key-value attributes on the span
	SetAttributes(attrs ...attribute.KeyValue)
	// RecordError records an error that occurred during the span
	RecordError(err error)
	// SetStatus sets the status code and description of the span
	SetStatus(code codes.Code, description string)
	// End marks the span as complete
	End()
}

// NoopTracer is a tracer that does nothing (zero overhead when tracing is disabled).
// This is the default tracer used when no tracing is configured.
type NoopTracer struct{}

// StartSpan returns the context unchanged with a no-op span.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan is a span that does nothing.
type NoopSpan struct{}

// SetAttributes does nothing.
func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}

// RecordError does nothing.
func (n *NoopSpan) RecordError(_ error) {}

// SetStatus does nothing.
func (n *NoopSpan) SetStatus(_ codes.Code, _ string) {}

// End does nothing.
func (n *NoopSpan) End() {}

// OtelTracer wraps an OpenTelemetry tracer to implement the Tracer interface.
// This allows seamless integration with OpenTelemetry-based observability systems.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer creates a new OpenTelemetry tracer adapter.
// The provided tracer must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a new OpenTelemetry span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &OtelSpan{span: span}
}

// OtelSpan wraps an OpenTelemetry span.
type OtelSpan struct {
	span trace.Span
}

// SetAttributes sets OpenTelemetry attributes on the span.
func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError records an error on the OpenTelemetry span.
func (s *OtelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// SetStatus sets the status of the OpenTelemetry span.
func (s *OtelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End completes the OpenTelemetry span.
func (s *OtelSpan) End() {
	s.span.End()
}

// QueryMetadata describes one executed statement for tracing purposes.
// It follows OpenTelemetry database semantic conventions.
type QueryMetadata struct {
	// SQL is the statement text, already masked for logging
	SQL string
	// Duration is how long the statement took to execute
	Duration time.Duration
	// RowsAffected is the number of rows affected or returned
	RowsAffected int64
	// Error is any error that occurred during execution
	Error error
	// Database is the database system name (mysql, sqlite)
	Database string
	// Operation is the statement keyword (SELECT, INSERT, ...)
	Operation string
	// Host is the endpoint the statement ran on (optional)
	Host string
	// Async marks statements reaped through an asynchronous result
	Async bool
}

// AddQueryAttributes adds database semantic convention attributes to a span.
// See: https://opentelemetry.io/docs/specs/semconv/database/
func AddQueryAttributes(span Span, meta *QueryMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.statement", meta.SQL),
		attribute.String("db.operation", meta.Operation),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
	}

	if meta.Host != "" {
		attrs = append(attrs, attribute.String("server.address", meta.Host))
	}

	if meta.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", meta.RowsAffected))
	}

	if meta.Async {
		attrs = append(attrs, attribute.Bool("db.async", true))
	}

	span.SetAttributes(attrs...)

	if meta.Error != nil {
		span.RecordError(meta.Error)
		span.SetStatus(codes.Error, meta.Error.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// operations lists the recognized leading keywords. WITH is reported as SELECT.
var operations = []string{
	"SELECT", "INSERT", "REPLACE", "UPDATE", "DELETE",
	"SHOW", "DESCRIBE", "DESC", "EXPLAIN", "PRAGMA",
}

// DetectOperation detects the statement type from its leading keyword.
// Opening parentheses of a compound SELECT are skipped. Returns UNKNOWN
// for anything unrecognized.
func DetectOperation(sql string) string {
	sql = strings.TrimLeft(strings.ToUpper(sql), " \t\r\n(")
	if strings.HasPrefix(sql, "WITH") {
		return "SELECT"
	}
	word := sql
	if i := strings.IndexAny(sql, " \t\r\n("); i >= 0 {
		word = sql[:i]
	}
	for _, op := range operations {
		if word == op {
			if op == "DESC" {
				return "DESCRIBE"
			}
			return op
		}
	}
	return "UNKNOWN"
}

// ReturnsRows reports whether a statement produces a result set.
func ReturnsRows(sql string) bool {
	switch DetectOperation(sql) {
	case "SELECT", "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA":
		return true
	}
	return false
}
