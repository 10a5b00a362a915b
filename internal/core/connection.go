// Package core provides connections, pools, query results and data access
// objects on top of the dialects, escaper and builder packages.
package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coregx/gravity/internal/analyzer"
	"github.com/coregx/gravity/internal/builder"
	"github.com/coregx/gravity/internal/dialects"
	"github.com/coregx/gravity/internal/escaper"
	"github.com/coregx/gravity/internal/logger"
	"github.com/coregx/gravity/internal/security"
	"github.com/coregx/gravity/internal/tracer"
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	}
	return "disconnected"
}

// endpoint is one physical server connection: a database/sql handle and
// the single *sql.Conn pinned from it.
type endpoint struct {
	role string // "rw" or "ro"
	host string // for logs and spans

	mu    sync.Mutex
	dsn   string
	state connState
	db    *sql.DB
	conn  *sql.Conn
}

func (ep *endpoint) connected() bool {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.state == stateConnected
}

// current returns the pinned connection, nil when not connected.
func (ep *endpoint) current() *sql.Conn {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.conn
}

func (ep *endpoint) close() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.closeLocked()
}

func (ep *endpoint) closeLocked() error {
	var errs []error
	if ep.conn != nil {
		errs = append(errs, ep.conn.Close())
	}
	if ep.db != nil {
		errs = append(errs, ep.db.Close())
	}
	ep.conn, ep.db = nil, nil
	ep.state = stateDisconnected
	return errors.Join(errs...)
}

// Connection talks to one logical database through a read/write endpoint
// and an optional distinct read-only endpoint. Endpoints connect lazily on
// the first statement. Statements never fail with a Go error: connect and
// execution failures both come back as failed results.
//
// A Connection issues one statement at a time. A pending asynchronous
// statement is reaped before the next statement is sent.
type Connection struct {
	name    string
	cfg     DatabaseConfig
	driver  Driver
	dialect dialects.Dialect
	rw      *endpoint
	ro      *endpoint // same as rw when both resolve to the same DSN

	mu       sync.Mutex
	readonly bool
	inTx     bool
	pending  *AsyncQueryResult
	escaper  *escaper.Escaper
	inflight atomic.Int32

	opener         Opener
	logger         logger.Logger
	sanitizer      *logger.Sanitizer
	tracer         tracer.Tracer
	queryHook      QueryHook
	validator      *security.Validator
	auditor        *security.Auditor
	slowThreshold  time.Duration
	healthInterval time.Duration
	health         *healthChecker
	stats          queryStats
}

// NewConnection creates a disconnected Connection for cfg. Only
// configuration problems are reported as errors.
func NewConnection(cfg DatabaseConfig, opts ...Option) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, ok := LookupDriver(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}

	c := newSettings(opts)
	c.cfg = cfg
	c.driver = d
	c.dialect = d.Dialect()

	rwDSN, roDSN, err := c.dsns(&c.cfg)
	if err != nil {
		return nil, err
	}
	c.rw = &endpoint{role: "rw", host: c.hostLabel(cfg.RWHost), dsn: rwDSN}
	c.ro = c.rw
	if roDSN != rwDSN {
		c.ro = &endpoint{role: "ro", host: c.hostLabel(cfg.ReadOnlyHost()), dsn: roDSN}
	}

	if c.healthInterval > 0 {
		c.health = newHealthChecker(c.Ping, c.logger, c.healthInterval)
		c.health.start()
	}
	return c, nil
}

func (c *Connection) dsns(cfg *DatabaseConfig) (rw, ro string, err error) {
	if rw, err = c.driver.DSN(cfg, cfg.RWHost); err != nil {
		return "", "", err
	}
	if ro, err = c.driver.DSN(cfg, cfg.ReadOnlyHost()); err != nil {
		return "", "", err
	}
	return rw, ro, nil
}

func (c *Connection) hostLabel(host string) string {
	switch {
	case c.cfg.Socket != "":
		return c.cfg.Socket
	case host != "":
		return host
	}
	return c.cfg.Database
}

// Name returns the logical database name assigned by the pool.
func (c *Connection) Name() string { return c.name }

// Dialect returns the SQL dialect of the connection's driver.
func (c *Connection) Dialect() dialects.Dialect { return c.dialect }

// Connect establishes the read/write endpoint, and the read-only endpoint
// when the connection is in read-only mode. Connecting twice is a no-op.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx, c.rw); err != nil {
		return WrapError(err, "connect "+c.rw.host)
	}
	if c.readonly && c.ro != c.rw {
		if err := c.connect(ctx, c.ro); err != nil {
			return WrapError(err, "connect "+c.ro.host)
		}
	}
	return nil
}

func (c *Connection) connect(ctx context.Context, ep *endpoint) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.state == stateConnected {
		return nil
	}
	ep.state = stateConnecting

	db, err := c.opener(c.driver.SQLDriverName(), ep.dsn)
	var conn *sql.Conn
	if err == nil {
		conn, err = db.Conn(ctx)
		if err == nil {
			if err = conn.PingContext(ctx); err != nil {
				_ = conn.Close()
			}
		}
		if err != nil {
			_ = db.Close()
		}
	}

	if err != nil {
		ep.state = stateDisconnected
		c.stats.connectFailures.Add(1)
		c.logger.Warn("database connect failed",
			"database", c.name,
			"endpoint", ep.role,
			"host", ep.host,
			"dsn", c.sanitizer.MaskDSN(ep.dsn),
			"error", err)
		return err
	}

	ep.db, ep.conn, ep.state = db, conn, stateConnected
	c.stats.connects.Add(1)
	c.logger.Info("database connected",
		"database", c.name,
		"endpoint", ep.role,
		"host", ep.host)
	return nil
}

// markBroken drops an endpoint whose server connection is unusable so the
// next statement reconnects.
func (c *Connection) markBroken(ep *endpoint, cause error) {
	_ = ep.close()
	c.logger.Warn("database connection lost",
		"database", c.name,
		"endpoint", ep.role,
		"host", ep.host,
		"error", cause)
}

// Disconnect reaps a pending statement and closes both endpoints. It is
// idempotent; the next statement reconnects.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reap()
	c.inTx = false
	return c.closeEndpoints()
}

func (c *Connection) closeEndpoints() error {
	err := c.rw.close()
	if c.ro != c.rw {
		err = errors.Join(err, c.ro.close())
	}
	return err
}

// Close stops health checks and disconnects.
func (c *Connection) Close() error {
	if c.health != nil {
		c.health.shutdown()
	}
	return c.Disconnect()
}

// IsConnected reports whether the endpoint serving the current mode is
// connected.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readonly {
		return c.ro.connected()
	}
	return c.rw.connected()
}

// SetReadonly switches read-only mode. In read-only mode statements that
// return rows go to the read-only endpoint unless a transaction is open.
func (c *Connection) SetReadonly(readonly bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readonly = readonly
}

// Readonly reports whether read-only mode is enabled.
func (c *Connection) Readonly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readonly
}

// Database returns the current default database.
func (c *Connection) Database() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Database
}

// QueryEscaper returns the connection's escaper, creating it on first use.
func (c *Connection) QueryEscaper() *escaper.Escaper {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.escaper == nil {
		c.escaper = escaper.New(c.dialect)
	}
	return c.escaper
}

// NewDMLQueryBuilder returns a new builder that escapes every argument.
func (c *Connection) NewDMLQueryBuilder() *builder.SafeQueryBuilder {
	return builder.NewSafe(builder.New(c.dialect), c.QueryEscaper())
}

// NewRawDMLQueryBuilder returns a new builder taking trusted SQL fragments.
func (c *Connection) NewRawDMLQueryBuilder() *builder.DMLQueryBuilder {
	return builder.New(c.dialect)
}

// Query executes a statement and returns its materialized result. The
// query hook and the auditor run after the connection is released, so a
// hook may call back into the Connection.
func (c *Connection) Query(ctx context.Context, query string) *QueryResult {
	res, event := c.query(ctx, query)
	c.notify(ctx, event)
	return res
}

func (c *Connection) query(ctx context.Context, query string) (*QueryResult, *QueryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reap()
	ep, failed := c.prepare(ctx, query)
	if failed != nil {
		return failed, nil
	}
	res, event := c.execute(ctx, ep, query, false)
	if c.inTx && !c.rw.connected() {
		c.inTx = false
	}
	return res, event
}

// AsyncQuery sends a statement and returns without waiting for the server.
// The result is reaped on its first accessor call, or before the next
// statement on this connection. Connect failures return an already reaped
// failed result.
func (c *Connection) AsyncQuery(ctx context.Context, query string) *AsyncQueryResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reap()
	ep, failed := c.prepare(ctx, query)
	if failed != nil {
		return newFetchedResult(failed)
	}

	pending := make(chan *QueryResult, 1)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Add(-1)
		res, event := c.execute(ctx, ep, query, true)
		pending <- res
		c.notify(ctx, event)
	}()

	c.pending = newPendingResult(query, pending)
	return c.pending
}

// reap waits for the pending asynchronous statement. Callers hold c.mu.
func (c *Connection) reap() {
	if c.pending == nil {
		return
	}
	c.pending.fetch()
	c.pending = nil
}

// prepare validates the statement, picks its endpoint and connects it.
// A non-nil result reports why the statement was not sent.
func (c *Connection) prepare(ctx context.Context, query string) (*endpoint, *QueryResult) {
	if c.validator != nil {
		if err := c.validator.ValidateQuery(query); err != nil {
			c.logger.Warn("statement rejected",
				"database", c.name,
				"sql", c.sanitizer.Truncate(c.sanitizer.MaskSQL(query)),
				"error", err)
			if c.auditor != nil {
				c.auditor.LogSecurityEvent(ctx, "query_blocked", query, err)
			}
			c.stats.failures.Add(1)
			return nil, newFailedResult(query, 0, WrapError(err, ErrDangerousQuery.Error()).Error(), nil)
		}
	}

	ep := c.rw
	if c.readonly && !c.inTx && tracer.ReturnsRows(query) {
		ep = c.ro
	}

	if err := c.connect(ctx, ep); err != nil {
		number, message := c.driver.ErrorInfo(err)
		if number == 0 {
			number = c.driver.ConnectErrorNumber()
		}
		return nil, newFailedResult(query, number, message, c.driver)
	}
	return ep, nil
}

// execute runs a statement on a connected endpoint and returns the event
// to pass to notify once c.mu is released. It does not touch state guarded
// by c.mu, since asynchronous statements call it from their own goroutine.
func (c *Connection) execute(ctx context.Context, ep *endpoint, query string, async bool) (*QueryResult, *QueryEvent) {
	operation := tracer.DetectOperation(query)
	ctx, span := c.tracer.StartSpan(ctx, "gravity.query")
	defer span.End()

	start := time.Now()

	var (
		res *QueryResult
		err error
	)
	if conn := ep.current(); conn == nil {
		err = ErrNotConnected
	} else if tracer.ReturnsRows(query) {
		res, err = fetchRows(ctx, conn, query)
	} else {
		res, err = execStatement(ctx, conn, query)
	}

	elapsed := time.Since(start)

	if err != nil {
		number, message := c.driver.ErrorInfo(err)
		if errors.Is(err, ErrNotConnected) {
			number = c.driver.ConnectErrorNumber()
		}
		res = newFailedResult(query, number, message, c.driver)
		if c.driver.Broken(err) {
			c.markBroken(ep, err)
		}
	}

	c.record(ep, query, res, elapsed, async)

	tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
		SQL:          c.sanitizer.MaskSQL(query),
		Duration:     elapsed,
		RowsAffected: res.NumberOfAffectedRows(),
		Error:        res.Err(),
		Database:     c.dialect.Name(),
		Operation:    operation,
		Host:         ep.host,
		Async:        async,
	})

	return res, &QueryEvent{
		SQL:          query,
		Host:         ep.host,
		Duration:     elapsed,
		RowsAffected: res.NumberOfAffectedRows(),
		Error:        res.Err(),
		Operation:    operation,
		Async:        async,
	}
}

// fetchRows buffers a whole result set. []byte values become strings.
func fetchRows(ctx context.Context, conn *sql.Conn, query string) (*QueryResult, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	buffered := make([]Row, 0)
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
			} else {
				row[column] = values[i]
			}
		}
		buffered = append(buffered, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return newRowsResult(query, columns, buffered), nil
}

func execStatement(ctx context.Context, conn *sql.Conn, query string) (*QueryResult, error) {
	result, err := conn.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}
	// Drivers without support report errors here; both counts stay 0 then.
	insertID, _ := result.LastInsertId()
	affected, _ := result.RowsAffected()
	return newExecResult(query, insertID, affected), nil
}

// record updates statistics and logs the statement.
func (c *Connection) record(ep *endpoint, query string, res *QueryResult, elapsed time.Duration, async bool) {
	slow := c.slowThreshold > 0 && elapsed > c.slowThreshold
	c.stats.record(res, elapsed, async, slow)

	masked := c.sanitizer.Truncate(c.sanitizer.MaskSQL(query))
	switch {
	case res.HasFailed():
		c.logger.Error("query failed",
			"database", c.name,
			"host", ep.host,
			"sql", masked,
			"error_number", res.ErrorNumber(),
			"error", res.ErrorMessage(),
			"duration_ms", elapsed.Milliseconds(),
			"async", async)
	case slow:
		c.logger.Warn("slow query",
			"database", c.name,
			"host", ep.host,
			"sql", masked,
			"duration_ms", elapsed.Milliseconds(),
			"threshold_ms", c.slowThreshold.Milliseconds(),
			"async", async)
	default:
		c.logger.Debug("query executed",
			"database", c.name,
			"host", ep.host,
			"sql", masked,
			"rows_affected", res.NumberOfAffectedRows(),
			"duration_ms", elapsed.Milliseconds(),
			"async", async)
	}
}

// notify passes an executed statement to the query hook and the auditor.
// Callers must not hold c.mu.
func (c *Connection) notify(ctx context.Context, event *QueryEvent) {
	if event == nil {
		return
	}
	c.invokeHook(ctx, *event)

	if c.auditor != nil {
		c.auditor.LogOperation(ctx, security.Operation{
			Kind:         event.Operation,
			Query:        event.SQL,
			Database:     c.name,
			Host:         event.Host,
			AffectedRows: event.RowsAffected,
			Err:          event.Error,
			Duration:     event.Duration,
		})
	}
}

// BeginTransaction starts a transaction on the read/write endpoint. Until
// Commit or Rollback every statement uses that endpoint.
func (c *Connection) BeginTransaction(ctx context.Context) error {
	res := c.Query(ctx, c.dialect.BeginSQL())
	if res.HasFailed() {
		return res.Err()
	}
	c.mu.Lock()
	c.inTx = true
	c.mu.Unlock()
	return nil
}

// Commit commits the open transaction.
func (c *Connection) Commit(ctx context.Context) error {
	res := c.Query(ctx, "COMMIT")
	if res.HasFailed() {
		return res.Err()
	}
	c.mu.Lock()
	c.inTx = false
	c.mu.Unlock()
	return nil
}

// Rollback rolls back the open transaction.
func (c *Connection) Rollback(ctx context.Context) error {
	res := c.Query(ctx, "ROLLBACK")
	c.mu.Lock()
	c.inTx = false
	c.mu.Unlock()
	return res.Err()
}

// InTransaction reports whether a transaction started by BeginTransaction
// is open.
func (c *Connection) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inTx
}

// ChangeDatabase switches the default database. MySQL endpoints that are
// connected run USE; SQLite connections reopen on the new file lazily.
func (c *Connection) ChangeDatabase(ctx context.Context, database string) error {
	events, err := c.changeDatabase(ctx, database)
	for _, event := range events {
		c.notify(ctx, event)
	}
	return err
}

func (c *Connection) changeDatabase(ctx context.Context, database string) ([]*QueryEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reap()

	cfg := c.cfg
	cfg.Database = database
	rwDSN, roDSN, err := c.dsns(&cfg)
	if err != nil {
		return nil, err
	}

	var events []*QueryEvent
	if stmt := c.dialect.UseDatabaseSQL(database); stmt != "" {
		for _, ep := range c.endpoints() {
			if !ep.connected() {
				continue
			}
			res, event := c.execute(ctx, ep, stmt, false)
			events = append(events, event)
			if res.HasFailed() {
				return events, res.Err()
			}
		}
	} else if err := c.closeEndpoints(); err != nil {
		c.logger.Warn("database close failed", "database", c.name, "error", err)
	}

	c.cfg = cfg
	c.rw.mu.Lock()
	c.rw.dsn = rwDSN
	c.rw.mu.Unlock()
	if c.ro != c.rw {
		c.ro.mu.Lock()
		c.ro.dsn = roDSN
		c.ro.mu.Unlock()
	}
	return events, nil
}

func (c *Connection) endpoints() []*endpoint {
	if c.ro == c.rw {
		return []*endpoint{c.rw}
	}
	return []*endpoint{c.rw, c.ro}
}

// Defragment reclaims unused space of a table: OPTIMIZE TABLE on MySQL,
// VACUUM of the whole database on SQLite.
func (c *Connection) Defragment(ctx context.Context, table string) *QueryResult {
	return c.Query(ctx, c.dialect.DefragmentSQL(c.QueryEscaper().Table(table)))
}

// Explain runs EXPLAIN for a statement and returns the parsed plan.
func (c *Connection) Explain(ctx context.Context, query string) (*analyzer.QueryPlan, error) {
	stmt, err := analyzer.Statement(c.dialect.Name(), query)
	if err != nil {
		return nil, err
	}
	res := c.Query(ctx, stmt)
	if res.HasFailed() {
		return nil, res.Err()
	}
	return analyzer.Parse(c.dialect.Name(), res.ResultArray())
}

// Ping checks the connected endpoints. Endpoints that fail are dropped and
// reconnect on the next statement. Ping is skipped while a statement is
// running.
func (c *Connection) Ping(ctx context.Context) error {
	if !c.mu.TryLock() {
		return nil
	}
	defer c.mu.Unlock()

	if c.inflight.Load() > 0 {
		return nil
	}

	var errs []error
	for _, ep := range c.endpoints() {
		conn := ep.current()
		if conn == nil {
			continue
		}
		if err := conn.PingContext(ctx); err != nil {
			c.markBroken(ep, err)
			errs = append(errs, WrapError(err, ep.role+" "+ep.host))
		}
	}
	return errors.Join(errs...)
}

// IsHealthy reports the last health check outcome, or whether the
// connection is connected when health checks are disabled.
func (c *Connection) IsHealthy() bool {
	if c.health != nil {
		return c.health.isHealthy()
	}
	return c.IsConnected()
}

// LastHealthCheck returns the time and error of the most recent health
// check. The time is zero when health checks are disabled or none ran yet.
func (c *Connection) LastHealthCheck() (time.Time, error) {
	if c.health == nil {
		return time.Time{}, nil
	}
	return c.health.lastCheck(), c.health.lastError()
}

// Stats returns a snapshot of the connection statistics.
func (c *Connection) Stats() StatsSnapshot {
	return c.stats.snapshot()
}
