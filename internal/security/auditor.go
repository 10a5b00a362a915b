package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/coregx/gravity/internal/logger"
)

// AuditLevel defines the level of audit logging.
type AuditLevel int

const (
	// AuditNone disables audit logging.
	AuditNone AuditLevel = iota
	// AuditWrites logs only write statements (INSERT, REPLACE, UPDATE, DELETE).
	AuditWrites
	// AuditReads logs read statements (SELECT, SHOW, ...) in addition to writes.
	AuditReads
	// AuditAll logs every statement including transaction and utility commands.
	AuditAll
)

// AuditEvent represents a single executed statement for audit logging.
type AuditEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	User         string    `json:"user,omitempty"`
	Operation    string    `json:"operation"`
	Database     string    `json:"database,omitempty"`
	Host         string    `json:"host,omitempty"`
	AffectedRows int64     `json:"affected_rows"`
	SQL          string    `json:"sql"`
	QueryHash    string    `json:"query_hash"`
	ClientIP     string    `json:"client_ip,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	Duration     int64     `json:"duration_ms,omitempty"`
}

// Operation describes one statement handed to LogOperation.
type Operation struct {
	Kind         string // statement keyword as reported by tracer.DetectOperation
	Query        string
	Database     string
	Host         string
	AffectedRows int64
	Err          error
	Duration     time.Duration
}

// Auditor handles audit logging of executed statements. Logged SQL has
// sensitive literals masked; the hash is taken over the unmasked text so
// identical statements correlate.
type Auditor struct {
	logger    *slog.Logger
	level     AuditLevel
	sanitizer *logger.Sanitizer
}

// NewAuditor creates a new audit logger.
func NewAuditor(l *slog.Logger, level AuditLevel) *Auditor {
	return &Auditor{
		logger:    l,
		level:     level,
		sanitizer: logger.NewSanitizer(nil),
	}
}

// LogOperation logs an executed statement to the audit log.
func (a *Auditor) LogOperation(ctx context.Context, op Operation) {
	if !a.shouldLog(op.Kind) {
		return
	}

	event := AuditEvent{
		Timestamp:    time.Now().UTC(),
		User:         GetUser(ctx),
		Operation:    op.Kind,
		Database:     op.Database,
		Host:         op.Host,
		AffectedRows: op.AffectedRows,
		SQL:          a.sanitizer.MaskSQL(op.Query),
		QueryHash:    hashQuery(op.Query),
		ClientIP:     GetClientIP(ctx),
		RequestID:    GetRequestID(ctx),
		Success:      op.Err == nil,
		Duration:     op.Duration.Milliseconds(),
	}
	if op.Err != nil {
		event.Error = op.Err.Error()
	}

	a.logEvent(event)
}

// LogSecurityEvent logs a security-related event such as a blocked statement.
func (a *Auditor) LogSecurityEvent(ctx context.Context, eventType, query string, err error) {
	if a.logger == nil {
		return
	}

	a.logger.Warn("security_event",
		"event_type", eventType,
		"timestamp", time.Now().UTC(),
		"user", GetUser(ctx),
		"client_ip", GetClientIP(ctx),
		"request_id", GetRequestID(ctx),
		"query", a.sanitizer.MaskSQL(query),
		"error", err.Error(),
	)
}

// shouldLog determines if an operation should be logged based on audit level.
func (a *Auditor) shouldLog(operation string) bool {
	if a.logger == nil {
		return false
	}

	switch a.level {
	case AuditWrites:
		return isWrite(operation)
	case AuditReads:
		return isWrite(operation) || isRead(operation)
	case AuditAll:
		return true
	}
	return false
}

func isWrite(operation string) bool {
	switch operation {
	case "INSERT", "REPLACE", "UPDATE", "DELETE":
		return true
	}
	return false
}

func isRead(operation string) bool {
	switch operation {
	case "SELECT", "SHOW", "DESCRIBE", "EXPLAIN":
		return true
	}
	return false
}

// logEvent writes the audit event to the logger.
func (a *Auditor) logEvent(event AuditEvent) {
	// Use Info level for successful operations, Warn for failures
	logFunc := a.logger.Info
	if !event.Success {
		logFunc = a.logger.Warn
	}

	logFunc("audit_event",
		"timestamp", event.Timestamp,
		"user", event.User,
		"operation", event.Operation,
		"database", event.Database,
		"host", event.Host,
		"affected_rows", event.AffectedRows,
		"sql", event.SQL,
		"query_hash", event.QueryHash,
		"client_ip", event.ClientIP,
		"request_id", event.RequestID,
		"success", event.Success,
		"error", event.Error,
		"duration_ms", event.Duration,
	)
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// Context keys for audit metadata
type contextKey string

const (
	userKey      contextKey = "gravity:user"
	clientIPKey  contextKey = "gravity:client_ip"
	requestIDKey contextKey = "gravity:request_id"
)

// WithUser adds user information to the context for audit logging.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithClientIP adds client IP to the context for audit logging.
func WithClientIP(ctx context.Context, clientIP string) context.Context {
	return context.WithValue(ctx, clientIPKey, clientIP)
}

// WithRequestID adds request ID to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetUser retrieves user from context.
func GetUser(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

// GetClientIP retrieves client IP from context.
func GetClientIP(ctx context.Context) string {
	clientIP, _ := ctx.Value(clientIPKey).(string)
	return clientIP
}

// GetRequestID retrieves request ID from context.
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}
