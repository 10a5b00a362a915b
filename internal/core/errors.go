package core

import (
	"errors"
	"fmt"
)

// Predefined errors returned by connection management. Per-statement
// failures are reported through QueryResult instead.
var (
	// ErrUnsupportedDriver is returned when a configuration names a driver tag
	// with no registered Driver.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrUnknownDatabase is returned when a logical database name is not configured.
	ErrUnknownDatabase = errors.New("unknown logical database")
	// ErrInvalidConfig is returned when a database configuration is incomplete.
	ErrInvalidConfig = errors.New("invalid database configuration")
	// ErrNotConnected is returned when an operation needs an established connection.
	ErrNotConnected = errors.New("not connected")
	// ErrDangerousQuery is returned when the statement validator rejects a statement.
	ErrDangerousQuery = errors.New("statement rejected by validator")
	// ErrPoolClosed is returned by a pool after Close.
	ErrPoolClosed = errors.New("connection pool is closed")
)

// QueryError describes a failed statement with the driver's error number and
// message.
type QueryError struct {
	Query   string
	Number  int
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed (%d): %s", e.Number, e.Message)
}

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
