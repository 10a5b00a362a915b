//go:build cgo

package core

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/coregx/gravity/internal/dialects"
)

// sqlite3SQLDriver is the database/sql name of the mattn driver with the
// REGEXP function installed on every connection.
const sqlite3SQLDriver = "gravity_sqlite3"

// sqlite3Driver is the "sqlite3" driver family backed by mattn/go-sqlite3.
type sqlite3Driver struct{}

func (sqlite3Driver) SQLDriverName() string { return sqlite3SQLDriver }

func (sqlite3Driver) Dialect() dialects.Dialect { return dialects.GetDialect("sqlite3") }

func (sqlite3Driver) DSN(cfg *DatabaseConfig, _ string) (string, error) {
	if cfg.Database == "" {
		return "", fmt.Errorf("%w: sqlite3 requires a database file", ErrInvalidConfig)
	}
	if cfg.ConnectTimeout > 0 {
		return fmt.Sprintf("%s?_busy_timeout=%d", cfg.Database, cfg.ConnectTimeout.Milliseconds()), nil
	}
	return cfg.Database, nil
}

func (sqlite3Driver) ErrorInfo(err error) (int, string) {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return int(se.ExtendedCode), se.Error()
	}
	return 0, err.Error()
}

func (sqlite3Driver) ConnectErrorNumber() int { return int(sqlite3.ErrCantOpen) }

func (sqlite3Driver) Deadlock(number int) bool { return number&0xff == int(sqlite3.ErrLocked) }

func (sqlite3Driver) LockTimeout(number int) bool { return number&0xff == int(sqlite3.ErrBusy) }

func (sqlite3Driver) Broken(err error) bool { return brokenConnection(err) }

func init() {
	sql.Register(sqlite3SQLDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", matchRegexp, true)
		},
	})
	RegisterDriver("sqlite3", sqlite3Driver{})
}
