package core

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/coregx/gravity/internal/dialects"
	"github.com/coregx/gravity/internal/util"
)

// sqliteDriver is the "sqlite" driver family backed by the pure Go
// modernc.org/sqlite driver.
type sqliteDriver struct{}

func (sqliteDriver) SQLDriverName() string { return "sqlite" }

func (sqliteDriver) Dialect() dialects.Dialect { return dialects.GetDialect("sqlite") }

// DSN returns the database file, with a busy timeout when a connect timeout
// is configured. Hosts are ignored.
func (sqliteDriver) DSN(cfg *DatabaseConfig, _ string) (string, error) {
	if cfg.Database == "" {
		return "", fmt.Errorf("%w: sqlite requires a database file", ErrInvalidConfig)
	}
	if cfg.ConnectTimeout > 0 {
		return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", cfg.Database, cfg.ConnectTimeout.Milliseconds()), nil
	}
	return cfg.Database, nil
}

func (sqliteDriver) ErrorInfo(err error) (int, string) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code(), se.Error()
	}
	return 0, err.Error()
}

func (sqliteDriver) ConnectErrorNumber() int { return sqlite3lib.SQLITE_CANTOPEN }

// Deadlock matches SQLITE_LOCKED and its extended codes.
func (sqliteDriver) Deadlock(number int) bool { return number&0xff == sqlite3lib.SQLITE_LOCKED }

// LockTimeout matches SQLITE_BUSY and its extended codes.
func (sqliteDriver) LockTimeout(number int) bool { return number&0xff == sqlite3lib.SQLITE_BUSY }

func (sqliteDriver) Broken(err error) bool { return brokenConnection(err) }

// sqliteRegexp backs "value REGEXP pattern", which SQLite evaluates as
// regexp(pattern, value).
func sqliteRegexp(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	ok, err := matchRegexp(util.ToString(args[0]), util.ToString(args[1]))
	if err != nil {
		return nil, err
	}
	if ok {
		return int64(1), nil
	}
	return int64(0), nil
}

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction("regexp", 2, sqliteRegexp); err != nil {
		panic(err)
	}
	RegisterDriver("sqlite", sqliteDriver{})
}
