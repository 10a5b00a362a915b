package core

import (
	"context"
	"log/slog"

	"github.com/coregx/gravity/internal/builder"
	"github.com/coregx/gravity/internal/escaper"
	"github.com/coregx/gravity/internal/logger"
	"github.com/coregx/gravity/internal/util"
)

// DatabaseAccessObject is the base for data access objects. It holds a
// connection with its escaper, and result helpers that log failed
// statements and return empty values.
//
// Embed it in domain DAOs:
//
//	type UserDAO struct {
//	    *gravity.DatabaseAccessObject
//	}
type DatabaseAccessObject struct {
	conn      *Connection
	escaper   *escaper.Escaper
	sanitizer *logger.Sanitizer
	pool      *ConnectionPool
	logger    logger.Logger
}

// NewDatabaseAccessObject creates a DAO on conn. pool may be nil. A nil
// conn leaves the DAO unbound until SwapConnection: Escaper returns nil
// and ResultRetry returns its argument.
func NewDatabaseAccessObject(conn *Connection, log *slog.Logger, pool *ConnectionPool) *DatabaseAccessObject {
	d := &DatabaseAccessObject{
		pool:   pool,
		logger: logger.New(log),
	}
	d.bind(conn)
	return d
}

// SwapConnection replaces the connection and its escaper.
func (d *DatabaseAccessObject) SwapConnection(conn *Connection) {
	d.bind(conn)
}

// bind takes the escaper and the log sanitizer from conn, so logged
// statements are masked like the connection's own.
func (d *DatabaseAccessObject) bind(conn *Connection) {
	d.conn = conn
	if conn == nil {
		d.escaper = nil
		d.sanitizer = logger.NewSanitizer(nil)
		return
	}
	d.escaper = conn.QueryEscaper()
	d.sanitizer = conn.sanitizer
}

// Connection returns the current connection.
func (d *DatabaseAccessObject) Connection() *Connection { return d.conn }

// Escaper returns the escaper of the current connection.
func (d *DatabaseAccessObject) Escaper() *escaper.Escaper { return d.escaper }

// Pool returns the pool the DAO was created with, or nil.
func (d *DatabaseAccessObject) Pool() *ConnectionPool { return d.pool }

// NewDMLQueryBuilder returns an escaping builder for the current connection,
// which must not be nil.
func (d *DatabaseAccessObject) NewDMLQueryBuilder() *builder.SafeQueryBuilder {
	return d.conn.NewDMLQueryBuilder()
}

// failed logs r when it failed.
func (d *DatabaseAccessObject) failed(r Result) bool {
	if !r.HasFailed() {
		return false
	}
	d.logger.Error("query failed",
		"sql", d.masked(r.Query()),
		"error_number", r.ErrorNumber(),
		"error", r.ErrorMessage())
	return true
}

func (d *DatabaseAccessObject) masked(query string) string {
	return d.sanitizer.Truncate(d.sanitizer.MaskSQL(query))
}

// ResultArray returns all rows, or nil if the statement failed.
func (d *DatabaseAccessObject) ResultArray(r Result) []Row {
	if d.failed(r) {
		return nil
	}
	return r.ResultArray()
}

// IndexedResultArray returns all rows keyed by the string value of column
// key. Later rows win on duplicate keys.
func (d *DatabaseAccessObject) IndexedResultArray(r Result, key string) map[string]Row {
	if d.failed(r) {
		return nil
	}
	rows := r.ResultArray()
	indexed := make(map[string]Row, len(rows))
	for _, row := range rows {
		indexed[util.ToString(row[key])] = row
	}
	return indexed
}

// ResultRow returns the next row, or nil if the statement failed.
func (d *DatabaseAccessObject) ResultRow(r Result) Row {
	if d.failed(r) {
		return nil
	}
	return r.ResultRow()
}

// ResultColumn returns one column over all rows, or nil on failure.
func (d *DatabaseAccessObject) ResultColumn(r Result, column string) []any {
	if d.failed(r) {
		return nil
	}
	return r.ResultColumn(column)
}

// ResultCell returns one column of the next row, or nil on failure.
func (d *DatabaseAccessObject) ResultCell(r Result, cell string) any {
	if d.failed(r) {
		return nil
	}
	return r.ResultCell(cell)
}

// ResultBoolean reports whether the statement succeeded.
func (d *DatabaseAccessObject) ResultBoolean(r Result) bool {
	return !d.failed(r)
}

// ResultRetry re-runs the statement of r while it fails with a deadlock or
// lock timeout, at most retries times, and returns the last result.
func (d *DatabaseAccessObject) ResultRetry(ctx context.Context, r Result, retries int) Result {
	if d.conn == nil {
		return r
	}
	for i := 0; i < retries; i++ {
		if !r.HasDeadlock() && !r.HasLockTimeout() {
			break
		}
		d.logger.Warn("retrying query",
			"sql", d.masked(r.Query()),
			"attempt", i+1,
			"error_number", r.ErrorNumber())
		r = d.conn.Query(ctx, r.Query())
	}
	return r
}
