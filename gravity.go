// Package gravity is a SQL data manipulation layer for MySQL and SQLite.
// It builds SELECT, INSERT, REPLACE, UPDATE and DELETE statements with
// dialect-aware escaping, and runs them over connections that split reads
// and writes between hosts, connect lazily and never fail with a Go error:
// every outcome is a QueryResult.
//
//	pool, err := gravity.NewConnectionPool(cfg, gravity.WithLogger(slog.Default()))
//	conn, err := pool.GetConnection("main")
//
//	query := conn.NewDMLQueryBuilder().
//	    Select("id, name").
//	    From("users").
//	    Where("email", email).
//	    GetSelectQuery()
//
//	res := conn.Query(ctx, query)
//	if res.HasFailed() {
//	    return res.Err()
//	}
//	row := res.ResultRow()
package gravity

import (
	"github.com/coregx/gravity/internal/analyzer"
	"github.com/coregx/gravity/internal/builder"
	"github.com/coregx/gravity/internal/core"
	"github.com/coregx/gravity/internal/dialects"
	"github.com/coregx/gravity/internal/escaper"
	"github.com/coregx/gravity/internal/security"
)

type (
	// Connection is a lazily connected database handle with rw/ro endpoints.
	Connection = core.Connection
	// ConnectionPool hands out one shared Connection per logical database.
	ConnectionPool = core.ConnectionPool
	// Config maps logical database names to their configuration.
	Config = core.Config
	// DatabaseConfig describes one logical database.
	DatabaseConfig = core.DatabaseConfig
	// Option is a functional option for configuring connections.
	Option = core.Option
	// Opener opens a database/sql handle.
	Opener = core.Opener
	// Driver adapts a database/sql driver family to connections.
	Driver = core.Driver

	// Result is the contract shared by QueryResult and AsyncQueryResult.
	Result = core.Result
	// QueryResult is the materialized outcome of one statement.
	QueryResult = core.QueryResult
	// AsyncQueryResult is the outcome of a statement sent with AsyncQuery.
	AsyncQueryResult = core.AsyncQueryResult
	// Row is one result row keyed by column name.
	Row = core.Row
	// QueryError describes a failed statement.
	QueryError = core.QueryError
	// QueryEvent is passed to query hooks.
	QueryEvent = core.QueryEvent
	// QueryHook is invoked after every statement.
	QueryHook = core.QueryHook
	// StatsSnapshot is a point-in-time copy of connection statistics.
	StatsSnapshot = core.StatsSnapshot
	// DatabaseAccessObject is the base for data access objects.
	DatabaseAccessObject = core.DatabaseAccessObject

	// DMLQueryBuilder assembles statements from trusted fragments.
	DMLQueryBuilder = builder.DMLQueryBuilder
	// SafeQueryBuilder escapes every argument before building.
	SafeQueryBuilder = builder.SafeQueryBuilder
	// Hint is an index hint attached to a table reference.
	Hint = builder.Hint
	// Escaper renders identifiers and values as SQL text.
	Escaper = escaper.Escaper
	// Dialect abstracts the SQL differences between MySQL and SQLite.
	Dialect = dialects.Dialect

	// QueryPlan is the parsed output of Connection.Explain.
	QueryPlan = analyzer.QueryPlan
	// Validator rejects statements matching injection patterns.
	Validator = security.Validator
	// Auditor writes audit records for executed statements.
	Auditor = security.Auditor
	// AuditLevel selects which statements are audited.
	AuditLevel = security.AuditLevel
)

// Audit levels.
const (
	AuditNone   = security.AuditNone
	AuditWrites = security.AuditWrites
	AuditReads  = security.AuditReads
	AuditAll    = security.AuditAll
)

// Errors.
var (
	ErrUnsupportedDriver = core.ErrUnsupportedDriver
	ErrUnknownDatabase   = core.ErrUnknownDatabase
	ErrInvalidConfig     = core.ErrInvalidConfig
	ErrNotConnected      = core.ErrNotConnected
	ErrDangerousQuery    = core.ErrDangerousQuery
	ErrPoolClosed        = core.ErrPoolClosed
	ErrDangerousPattern  = security.ErrDangerousPattern
)

// Re-export core functions.
var (
	NewConnection           = core.NewConnection
	NewConnectionPool       = core.NewConnectionPool
	NewDatabaseAccessObject = core.NewDatabaseAccessObject
	LoadConfig              = core.LoadConfig
	ParseConfig             = core.ParseConfig
	RegisterDriver          = core.RegisterDriver
	LookupDriver            = core.LookupDriver
	Drivers                 = core.Drivers

	WithLogger             = core.WithLogger
	WithTracer             = core.WithTracer
	WithQueryHook          = core.WithQueryHook
	WithHealthCheck        = core.WithHealthCheck
	WithSlowQueryThreshold = core.WithSlowQueryThreshold
	WithQueryValidator     = core.WithQueryValidator
	WithAuditor            = core.WithAuditor
	WithSensitiveFields    = core.WithSensitiveFields
	WithOpener             = core.WithOpener

	// Builders and escaping without a connection
	NewDMLQueryBuilder  = builder.New
	NewSafeQueryBuilder = builder.NewSafe
	NewEscaper          = escaper.New
	GetDialect          = dialects.GetDialect
	LookupDialect       = dialects.LookupDialect

	// Security
	NewValidator  = security.NewValidator
	WithStrict    = security.WithStrict
	NewAuditor    = security.NewAuditor
	WithUser      = security.WithUser
	WithClientIP  = security.WithClientIP
	WithRequestID = security.WithRequestID
)
