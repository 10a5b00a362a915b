package core

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/coregx/gravity/internal/security"
)

func memoryConfig() DatabaseConfig {
	return DatabaseConfig{Driver: "sqlite", Database: ":memory:"}
}

// newMemoryConnection returns a connection to a private in-memory SQLite
// database with a users table.
func newMemoryConnection(t *testing.T, opts ...Option) *Connection {
	t.Helper()

	conn, err := NewConnection(memoryConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	res := conn.Query(context.Background(),
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, email TEXT)`)
	require.False(t, res.HasFailed(), res.ErrorMessage())
	return conn
}

// newMockConnection returns a MySQL connection whose endpoint is backed by
// go-sqlmock.
func newMockConnection(t *testing.T, opts ...Option) (*Connection, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	opts = append([]Option{WithOpener(func(string, string) (*sql.DB, error) { return db, nil })}, opts...)
	conn, err := NewConnection(DatabaseConfig{Driver: "mysql", RWHost: "db-primary", Database: "app"}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = conn.Close()
	})
	return conn, mock
}

func TestNewConnection_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want error
	}{
		{"missing driver", DatabaseConfig{Database: "app"}, ErrInvalidConfig},
		{"unknown driver", DatabaseConfig{Driver: "oracle", RWHost: "db"}, ErrUnsupportedDriver},
		{"mysql without host", DatabaseConfig{Driver: "mysql", Database: "app"}, ErrInvalidConfig},
		{"sqlite without file", DatabaseConfig{Driver: "sqlite"}, ErrInvalidConfig},
		{"bad port", DatabaseConfig{Driver: "mysql", RWHost: "db", Port: 70000}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := NewConnection(tt.cfg)
			assert.Nil(t, conn)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConnection_LazyConnect(t *testing.T) {
	conn, err := NewConnection(memoryConfig())
	require.NoError(t, err)
	defer conn.Close()

	assert.False(t, conn.IsConnected())

	res := conn.Query(context.Background(), "SELECT 1 AS one")
	require.False(t, res.HasFailed(), res.ErrorMessage())
	assert.True(t, conn.IsConnected())
	assert.Equal(t, int64(1), res.ResultCell("one"))

	stats := conn.Stats()
	assert.Equal(t, int64(1), stats.Connects)
	assert.Equal(t, int64(1), stats.Queries)
}

func TestConnection_ConnectIsIdempotent(t *testing.T) {
	conn, err := NewConnection(memoryConfig())
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.Connect(ctx))
	assert.Equal(t, int64(1), conn.Stats().Connects)

	require.NoError(t, conn.Disconnect())
	require.NoError(t, conn.Disconnect())
	assert.False(t, conn.IsConnected())

	assert.False(t, conn.Query(ctx, "SELECT 1").HasFailed())
	assert.Equal(t, int64(2), conn.Stats().Connects)
}

func TestConnection_QueryLifecycle(t *testing.T) {
	conn := newMemoryConnection(t)
	ctx := context.Background()

	insert := conn.NewDMLQueryBuilder().
		Into("users").
		ColumnNames("name, email").
		Values("alice", "alice@example.com").
		Values("bob", "").
		GetInsertQuery()

	res := conn.Query(ctx, insert)
	require.False(t, res.HasFailed(), res.ErrorMessage())
	assert.Equal(t, int64(2), res.NumberOfAffectedRows())
	assert.Equal(t, int64(2), res.InsertID())
	assert.Zero(t, res.ErrorNumber())
	assert.Empty(t, res.ErrorMessage())
	assert.NoError(t, res.Err())

	sel := conn.NewDMLQueryBuilder().
		Select("id, name").
		From("users").
		OrderBy("id", true).
		GetSelectQuery()

	res = conn.Query(ctx, sel)
	require.False(t, res.HasFailed(), res.ErrorMessage())
	assert.Equal(t, int64(2), res.NumberOfRows())
	assert.Equal(t, int64(2), res.NumberOfAffectedRows())
	assert.Equal(t, []string{"id", "name"}, res.Columns())
	assert.Equal(t, []Row{
		{"id": int64(1), "name": "alice"},
		{"id": int64(2), "name": "bob"},
	}, res.ResultArray())

	update := conn.NewDMLQueryBuilder().
		Update("users").
		Set("email", "bob@example.com").
		Where("email", "").
		GetUpdateQuery()

	res = conn.Query(ctx, update)
	require.False(t, res.HasFailed(), res.ErrorMessage())
	assert.Equal(t, int64(1), res.NumberOfAffectedRows())

	res = conn.Query(ctx, conn.NewDMLQueryBuilder().
		Select("email").
		From("users").
		Where("name", "bob").
		GetSelectQuery())
	assert.Equal(t, "bob@example.com", res.ResultCell("email"))
}

func TestConnection_QueryFailure(t *testing.T) {
	conn := newMemoryConnection(t)

	res := conn.Query(context.Background(), "SELECT * FROM missing")
	assert.True(t, res.HasFailed())
	assert.NotZero(t, res.ErrorNumber())
	assert.Contains(t, res.ErrorMessage(), "no such table")
	assert.Equal(t, "SELECT * FROM missing", res.Query())
	assert.Empty(t, res.ResultArray())
	assert.Equal(t, Row{}, res.ResultRow())
	assert.Nil(t, res.ResultCell("id"))

	var qe *QueryError
	require.ErrorAs(t, res.Err(), &qe)
	assert.Equal(t, res.ErrorNumber(), qe.Number)
	assert.Equal(t, int64(1), conn.Stats().Failures)
}

func TestConnection_ConnectFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("mysql without server error number", func(t *testing.T) {
		conn, err := NewConnection(
			DatabaseConfig{Driver: "mysql", RWHost: "db-primary", Database: "app"},
			WithOpener(func(string, string) (*sql.DB, error) {
				return nil, errors.New("dial tcp: connection refused")
			}),
		)
		require.NoError(t, err)
		defer conn.Close()

		res := conn.Query(ctx, "SELECT 1")
		assert.True(t, res.HasFailed())
		assert.Equal(t, 2003, res.ErrorNumber())
		assert.Contains(t, res.ErrorMessage(), "connection refused")
		assert.False(t, conn.IsConnected())
		assert.Equal(t, int64(1), conn.Stats().ConnectFailures)

		assert.Error(t, conn.Connect(ctx))
	})

	t.Run("sqlite in missing directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "app.db")
		conn, err := NewConnection(DatabaseConfig{Driver: "sqlite", Database: path})
		require.NoError(t, err)
		defer conn.Close()

		res := conn.Query(ctx, "SELECT 1")
		assert.True(t, res.HasFailed())
		assert.Equal(t, 14, res.ErrorNumber()&0xff)
		assert.False(t, conn.IsConnected())
	})

	t.Run("async connect failure is already reaped", func(t *testing.T) {
		conn, err := NewConnection(
			DatabaseConfig{Driver: "mysql", RWHost: "db-primary"},
			WithOpener(func(string, string) (*sql.DB, error) { return nil, errors.New("refused") }),
		)
		require.NoError(t, err)
		defer conn.Close()

		res := conn.AsyncQuery(ctx, "SELECT 1")
		assert.True(t, res.Fetched())
		assert.True(t, res.HasFailed())
		assert.Equal(t, 2003, res.ErrorNumber())
	})
}

func TestConnection_AsyncQuery(t *testing.T) {
	conn := newMemoryConnection(t)
	ctx := context.Background()

	insert := conn.AsyncQuery(ctx, "INSERT INTO users (name) VALUES ('carol')")
	assert.False(t, insert.Fetched())
	assert.Equal(t, "INSERT INTO users (name) VALUES ('carol')", insert.Query())
	assert.False(t, insert.Fetched(), "Query must not reap")

	assert.False(t, insert.HasFailed())
	assert.True(t, insert.Fetched())
	assert.Equal(t, int64(1), insert.InsertID())
	assert.Same(t, insert.Reap(), insert.Reap())

	sel := conn.AsyncQuery(ctx, "SELECT name FROM users")
	assert.Equal(t, []any{"carol"}, sel.ResultColumn("name"))
	assert.Empty(t, sel.ResultColumn("name"), "cursor is shared across accessors")

	stats := conn.Stats()
	assert.Equal(t, int64(2), stats.AsyncQueries)
}

func TestConnection_PendingAsyncReapedBeforeNextStatement(t *testing.T) {
	conn := newMemoryConnection(t)
	ctx := context.Background()

	pending := conn.AsyncQuery(ctx, "INSERT INTO users (name) VALUES ('dave')")
	res := conn.Query(ctx, "SELECT COUNT(*) AS n FROM users")

	assert.True(t, pending.Fetched())
	assert.Equal(t, int64(1), res.ResultCell("n"))
	assert.False(t, pending.HasFailed())

	pending = conn.AsyncQuery(ctx, "SELECT 1")
	require.NoError(t, conn.Disconnect())
	assert.True(t, pending.Fetched())
}

func TestConnection_Regexp(t *testing.T) {
	conn := newMemoryConnection(t)
	ctx := context.Background()

	conn.Query(ctx, "INSERT INTO users (name) VALUES ('alice'), ('bob'), ('alfred')")

	query := conn.NewDMLQueryBuilder().
		Select("name").
		From("users").
		WhereRegexp("name", "^al", false).
		OrderBy("name", true).
		GetSelectQuery()

	res := conn.Query(ctx, query)
	require.False(t, res.HasFailed(), res.ErrorMessage())
	assert.Equal(t, []any{"alfred", "alice"}, res.ResultColumn("name"))
}

func TestConnection_Transactions(t *testing.T) {
	conn := newMemoryConnection(t)
	ctx := context.Background()

	count := func() any {
		return conn.Query(ctx, "SELECT COUNT(*) AS n FROM users").ResultCell("n")
	}

	require.NoError(t, conn.BeginTransaction(ctx))
	assert.True(t, conn.InTransaction())
	conn.Query(ctx, "INSERT INTO users (name) VALUES ('eve')")
	require.NoError(t, conn.Rollback(ctx))
	assert.False(t, conn.InTransaction())
	assert.Equal(t, int64(0), count())

	require.NoError(t, conn.BeginTransaction(ctx))
	conn.Query(ctx, "INSERT INTO users (name) VALUES ('eve')")
	require.NoError(t, conn.Commit(ctx))
	assert.False(t, conn.InTransaction())
	assert.Equal(t, int64(1), count())

	err := conn.Commit(ctx)
	var qe *QueryError
	assert.ErrorAs(t, err, &qe)
}

func TestConnection_ChangeDatabase(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.db")
	second := filepath.Join(dir, "second.db")

	conn, err := NewConnection(DatabaseConfig{Driver: "sqlite", Database: first})
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.False(t, conn.Query(ctx, "CREATE TABLE t (id INTEGER)").HasFailed())

	require.NoError(t, conn.ChangeDatabase(ctx, second))
	assert.Equal(t, second, conn.Database())
	assert.False(t, conn.IsConnected())

	assert.True(t, conn.Query(ctx, "SELECT * FROM t").HasFailed())

	require.NoError(t, conn.ChangeDatabase(ctx, first))
	assert.False(t, conn.Query(ctx, "SELECT * FROM t").HasFailed())
}

func TestConnection_ChangeDatabaseMySQL(t *testing.T) {
	conn, mock := newMockConnection(t)
	ctx := context.Background()

	// Not connected yet: only the DSN changes.
	require.NoError(t, conn.ChangeDatabase(ctx, "reporting"))
	assert.Equal(t, "reporting", conn.Database())

	require.NoError(t, conn.Connect(ctx))
	mock.ExpectExec("USE `archive`").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, conn.ChangeDatabase(ctx, "archive"))
	assert.Equal(t, "archive", conn.Database())

	mock.ExpectExec("USE `broken`").WillReturnError(&mysql.MySQLError{Number: 1049, Message: "Unknown database 'broken'"})
	err := conn.ChangeDatabase(ctx, "broken")
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 1049, qe.Number)
	assert.Equal(t, "archive", conn.Database())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_ReadonlyRouting(t *testing.T) {
	rw, rwMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	ro, roMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	conn, err := NewConnection(
		DatabaseConfig{Driver: "mysql", RWHost: "db-primary", ROHost: "db-replica", Database: "app"},
		WithOpener(func(_, dsn string) (*sql.DB, error) {
			if strings.Contains(dsn, "db-replica") {
				return ro, nil
			}
			return rw, nil
		}),
	)
	require.NoError(t, err)

	ctx := context.Background()
	conn.SetReadonly(true)
	assert.True(t, conn.Readonly())

	roMock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow("1"))
	rwMock.ExpectExec("UPDATE `t` SET `a` = '1'").WillReturnResult(sqlmock.NewResult(0, 1))

	assert.False(t, conn.Query(ctx, "SELECT 1").HasFailed())
	assert.False(t, conn.Query(ctx, "UPDATE `t` SET `a` = '1'").HasFailed())

	rwMock.ExpectExec("START TRANSACTION").WillReturnResult(sqlmock.NewResult(0, 0))
	rwMock.ExpectQuery("SELECT 2").WillReturnRows(sqlmock.NewRows([]string{"2"}).AddRow("2"))
	rwMock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, conn.BeginTransaction(ctx))
	assert.Equal(t, "2", conn.Query(ctx, "SELECT 2").ResultCell("2"))
	require.NoError(t, conn.Commit(ctx))

	conn.SetReadonly(false)
	rwMock.ExpectQuery("SELECT 3").WillReturnRows(sqlmock.NewRows([]string{"3"}).AddRow("3"))
	assert.False(t, conn.Query(ctx, "SELECT 3").HasFailed())

	require.NoError(t, rwMock.ExpectationsWereMet())
	require.NoError(t, roMock.ExpectationsWereMet())

	rwMock.ExpectClose()
	roMock.ExpectClose()
	require.NoError(t, conn.Close())
}

func TestConnection_SharedEndpointForSameHost(t *testing.T) {
	conn, err := NewConnection(DatabaseConfig{Driver: "mysql", RWHost: "db", ROHost: "db"})
	require.NoError(t, err)
	defer conn.Close()

	assert.Same(t, conn.rw, conn.ro)
	assert.Len(t, conn.endpoints(), 1)
}

func TestConnection_DeadlockAndLockTimeout(t *testing.T) {
	conn, mock := newMockConnection(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE `t` SET `a` = '1'").
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectExec("UPDATE `t` SET `a` = '2'").
		WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})

	res := conn.Query(ctx, "UPDATE `t` SET `a` = '1'")
	assert.True(t, res.HasFailed())
	assert.True(t, res.HasDeadlock())
	assert.False(t, res.HasLockTimeout())
	assert.Equal(t, 1213, res.ErrorNumber())

	res = conn.Query(ctx, "UPDATE `t` SET `a` = '2'")
	assert.False(t, res.HasDeadlock())
	assert.True(t, res.HasLockTimeout())

	stats := conn.Stats()
	assert.Equal(t, int64(1), stats.Deadlocks)
	assert.Equal(t, int64(1), stats.LockTimeouts)
	assert.Equal(t, int64(2), stats.Failures)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_BrokenConnectionDisconnects(t *testing.T) {
	conn, mock := newMockConnection(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1").WillReturnError(mysql.ErrInvalidConn)

	res := conn.Query(ctx, "SELECT 1")
	assert.True(t, res.HasFailed())
	assert.False(t, conn.IsConnected())
}

func TestConnection_Validator(t *testing.T) {
	var seen atomic.Int32
	conn, err := NewConnection(memoryConfig(),
		WithQueryValidator(security.NewValidator()),
		WithQueryHook(func(context.Context, QueryEvent) { seen.Add(1) }),
	)
	require.NoError(t, err)
	defer conn.Close()

	res := conn.Query(context.Background(), "SELECT 1; DROP TABLE users")
	assert.True(t, res.HasFailed())
	assert.Contains(t, res.ErrorMessage(), ErrDangerousQuery.Error())
	assert.False(t, conn.IsConnected(), "rejected statements are never sent")
	assert.Zero(t, seen.Load())

	res = conn.Query(context.Background(), "SELECT 'a; DROP TABLE users' AS s")
	assert.False(t, res.HasFailed(), res.ErrorMessage())
}

func TestConnection_HookAndSlowQueries(t *testing.T) {
	var (
		mu     sync.Mutex
		events []QueryEvent
	)
	conn := newMemoryConnection(t,
		WithQueryHook(func(_ context.Context, e QueryEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		}),
		WithSlowQueryThreshold(0),
	)
	ctx := context.Background()

	conn.Query(ctx, "INSERT INTO users (name) VALUES ('frank')")
	conn.Query(ctx, "SELECT * FROM nope")
	conn.AsyncQuery(ctx, "SELECT name FROM users").Reap()

	// The async hook runs after the result is delivered.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 4
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// The CREATE TABLE from setup is the first event.
	assert.Equal(t, "INSERT", events[1].Operation)
	assert.Equal(t, int64(1), events[1].RowsAffected)
	assert.NoError(t, events[1].Error)
	assert.Error(t, events[2].Error)
	assert.Equal(t, "SELECT", events[3].Operation)
	assert.True(t, events[3].Async)
	assert.Equal(t, ":memory:", events[3].Host)

	stats := conn.Stats()
	assert.Zero(t, stats.SlowQueries)
	assert.Equal(t, int64(4), stats.Queries)
	assert.NotEmpty(t, stats.String())
}

func TestConnection_Logging(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	conn := newMemoryConnection(t, WithLogger(log))

	conn.Query(context.Background(), "SELECT * FROM accounts WHERE password = 'hunter2'")

	out := buf.String()
	assert.Contains(t, out, `"msg":"database connected"`)
	assert.Contains(t, out, `"msg":"query failed"`)
	assert.Contains(t, out, "***REDACTED***")
	assert.NotContains(t, out, "hunter2")
}

func TestConnection_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	conn := newMemoryConnection(t, WithTracer(provider.Tracer("gravity-test")))

	conn.Query(context.Background(), "SELECT name FROM users")

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	span := spans[1]
	assert.Equal(t, "gravity.query", span.Name())

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "sqlite", attrs["db.system"].AsString())
	assert.Equal(t, "SELECT", attrs["db.operation"].AsString())
	assert.Equal(t, "SELECT name FROM users", attrs["db.statement"].AsString())
}

func TestConnection_Explain(t *testing.T) {
	conn := newMemoryConnection(t)
	ctx := context.Background()

	plan, err := conn.Explain(ctx, "SELECT * FROM users WHERE id = 1")
	require.NoError(t, err)
	assert.True(t, plan.UsesIndex)
	assert.False(t, plan.FullScan)

	plan, err = conn.Explain(ctx, "SELECT * FROM users WHERE name = 'x'")
	require.NoError(t, err)
	assert.True(t, plan.FullScan)

	_, err = conn.Explain(ctx, "SELECT * FROM nope")
	assert.Error(t, err)
}

func TestConnection_Defragment(t *testing.T) {
	conn := newMemoryConnection(t)
	res := conn.Defragment(context.Background(), "users")
	assert.False(t, res.HasFailed(), res.ErrorMessage())
	assert.Equal(t, "VACUUM", res.Query())
}

func TestConnection_EscaperIsMemoized(t *testing.T) {
	conn, err := NewConnection(memoryConfig())
	require.NoError(t, err)
	defer conn.Close()

	assert.Same(t, conn.QueryEscaper(), conn.QueryEscaper())
	assert.Same(t, conn.QueryEscaper(), conn.NewDMLQueryBuilder().Escaper())
	assert.NotSame(t, conn.NewRawDMLQueryBuilder(), conn.NewRawDMLQueryBuilder())
	assert.Equal(t, "sqlite", conn.Dialect().Name())
}

func TestConnection_PingDropsDeadEndpoint(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	conn, err := NewConnection(
		DatabaseConfig{Driver: "mysql", RWHost: "db-primary"},
		WithOpener(func(string, string) (*sql.DB, error) { return db, nil }),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, conn.Ping(ctx), "nothing to ping before connect")

	mock.ExpectPing()
	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.IsConnected())

	mock.ExpectPing().WillReturnError(mysql.ErrInvalidConn)
	mock.ExpectClose()
	assert.Error(t, conn.Ping(ctx))
	assert.False(t, conn.IsConnected())
}

func TestConnection_Auditor(t *testing.T) {
	var buf bytes.Buffer
	auditor := security.NewAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), security.AuditWrites)
	conn := newMemoryConnection(t, WithAuditor(auditor))
	ctx := security.WithUser(context.Background(), "alice")

	conn.Query(ctx, "INSERT INTO users (name) VALUES ('grace')")
	conn.Query(ctx, "SELECT * FROM users")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `"msg":"audit_event"`), "CREATE TABLE and SELECT are not writes")
	assert.Contains(t, out, `"user":"alice"`)
	assert.Contains(t, out, `"operation":"INSERT"`)
}

func TestConnection_MissingColumnFails(t *testing.T) {
	conn := newMemoryConnection(t)
	ctx := context.Background()
	require.False(t, conn.Query(ctx, "INSERT INTO users (name) VALUES ('judy')").HasFailed())

	res := conn.Query(ctx, conn.NewDMLQueryBuilder().
		Select("nmae").
		From("users").
		Where("nmae", "nmae").
		GetSelectQuery())
	assert.True(t, res.HasFailed())
	assert.Contains(t, res.ErrorMessage(), "no such column")

	res = conn.Query(ctx, conn.NewDMLQueryBuilder().
		From("users").
		Where("emial", "emial").
		GetDeleteQuery())
	assert.True(t, res.HasFailed())
	assert.Equal(t, "judy", conn.Query(ctx, "SELECT name FROM users").ResultCell("name"))
}

func TestConnection_HookMayUseConnection(t *testing.T) {
	var conn *Connection
	counts := make(chan any, 2)
	conn = newMemoryConnection(t, WithQueryHook(func(ctx context.Context, e QueryEvent) {
		if e.Operation != "INSERT" {
			return
		}
		_ = conn.Readonly()
		_ = conn.IsConnected()
		_ = conn.QueryEscaper()
		counts <- conn.Query(ctx, "SELECT COUNT(*) AS n FROM users").ResultCell("n")
	}))
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.Query(ctx, "INSERT INTO users (name) VALUES ('ivan')")
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("query blocked by its own hook")
	}
	assert.Equal(t, int64(1), <-counts)

	conn.AsyncQuery(ctx, "INSERT INTO users (name) VALUES ('kim')").Reap()
	select {
	case n := <-counts:
		assert.Equal(t, int64(2), n)
	case <-time.After(5 * time.Second):
		t.Fatal("async hook blocked")
	}
}

func TestConnection_PingSkipsBusyConnection(t *testing.T) {
	conn := newMemoryConnection(t)
	conn.mu.Lock()
	defer conn.mu.Unlock()

	assert.NoError(t, conn.Ping(context.Background()))
}
