package core

import (
	"context"
	"time"
)

// QueryEvent contains information about an executed statement.
// It is passed to QueryHook callbacks for logging, metrics, or tracing.
type QueryEvent struct {
	// SQL is the executed statement
	SQL string
	// Host is the endpoint the statement ran on
	Host string
	// Duration is how long the statement took to execute
	Duration time.Duration
	// RowsAffected is the number of rows affected or returned
	RowsAffected int64
	// Error is the statement failure, nil on success
	Error error
	// Operation is the statement keyword (SELECT, INSERT, ...)
	Operation string
	// Async is set for statements issued through AsyncQuery
	Async bool
}

// QueryHook is a callback invoked after each statement completes, once the
// Connection is released; a hook may issue statements of its own. Hooks of
// asynchronous statements run on the goroutine executing the statement,
// after the result has been delivered.
//
// Example:
//
//	conn, _ := gravity.NewConnection(cfg,
//	    gravity.WithQueryHook(func(ctx context.Context, e gravity.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

// invokeHook calls the query hook if set.
func (c *Connection) invokeHook(ctx context.Context, event QueryEvent) {
	if c.queryHook != nil {
		c.queryHook(ctx, event)
	}
}
