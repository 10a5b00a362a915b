package core

import (
	"database/sql"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/coregx/gravity/internal/logger"
	"github.com/coregx/gravity/internal/security"
	"github.com/coregx/gravity/internal/tracer"
)

// Opener opens a database/sql handle. It exists so tests can substitute
// go-sqlmock for a real driver.
type Opener func(driverName, dsn string) (*sql.DB, error)

// Option is a functional option for configuring a Connection.
type Option func(*Connection)

// WithLogger sets the logger used for connection events and statements.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) {
		c.logger = logger.New(l)
	}
}

// WithTracer wraps every statement in an OpenTelemetry span.
func WithTracer(t trace.Tracer) Option {
	return func(c *Connection) {
		if t != nil {
			c.tracer = tracer.NewOtelTracer(t)
		}
	}
}

// WithQueryHook sets a callback invoked after every statement.
func WithQueryHook(hook QueryHook) Option {
	return func(c *Connection) {
		c.queryHook = hook
	}
}

// WithHealthCheck pings established endpoints at the given interval.
// A zero interval disables health checks.
func WithHealthCheck(interval time.Duration) Option {
	return func(c *Connection) {
		c.healthInterval = interval
	}
}

// WithSlowQueryThreshold sets the duration above which statements are
// logged as slow. Default is 100ms; zero disables slow query detection.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(c *Connection) {
		c.slowThreshold = d
	}
}

// WithQueryValidator rejects statements matching dangerous patterns before
// they are sent. Rejected statements return a failed result.
func WithQueryValidator(v *security.Validator) Option {
	return func(c *Connection) {
		c.validator = v
	}
}

// WithAuditor writes an audit record for every executed statement.
func WithAuditor(a *security.Auditor) Option {
	return func(c *Connection) {
		c.auditor = a
	}
}

// WithSensitiveFields replaces the column names whose literals are masked
// in logged statements.
func WithSensitiveFields(fields ...string) Option {
	return func(c *Connection) {
		c.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithOpener replaces sql.Open.
func WithOpener(open Opener) Option {
	return func(c *Connection) {
		if open != nil {
			c.opener = open
		}
	}
}

// newSettings returns a connection carrying only defaults and options.
func newSettings(opts []Option) *Connection {
	c := &Connection{
		opener:        sql.Open,
		logger:        &logger.NoopLogger{},
		tracer:        &tracer.NoopTracer{},
		sanitizer:     logger.NewSanitizer(nil),
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
