package core

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/coregx/gravity/internal/dialects"
)

// MySQL client and server error numbers used for classification.
const (
	mysqlConnHostError   = 2003 // CR_CONN_HOST_ERROR
	mysqlLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
	mysqlDeadlock        = 1213 // ER_LOCK_DEADLOCK
	mysqlDefaultPort     = 3306
)

// mysqlDriver is the "mysql" driver family backed by go-sql-driver/mysql.
type mysqlDriver struct{}

func (mysqlDriver) SQLDriverName() string { return "mysql" }

func (mysqlDriver) Dialect() dialects.Dialect { return dialects.GetDialect("mysql") }

// DSN builds a go-sql-driver DSN. A socket wins over host and port.
func (mysqlDriver) DSN(cfg *DatabaseConfig, host string) (string, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	mc.Timeout = cfg.ConnectTimeout

	switch {
	case cfg.Socket != "":
		mc.Net = "unix"
		mc.Addr = cfg.Socket
	case host != "":
		port := cfg.Port
		if port == 0 {
			port = mysqlDefaultPort
		}
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	default:
		return "", fmt.Errorf("%w: mysql requires rw_host or socket", ErrInvalidConfig)
	}

	if cfg.Charset != "" {
		mc.Params = map[string]string{"charset": cfg.Charset}
	}
	return mc.FormatDSN(), nil
}

func (mysqlDriver) ErrorInfo(err error) (int, string) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return int(me.Number), me.Message
	}
	return 0, err.Error()
}

func (mysqlDriver) ConnectErrorNumber() int { return mysqlConnHostError }

func (mysqlDriver) Deadlock(number int) bool { return number == mysqlDeadlock }

func (mysqlDriver) LockTimeout(number int) bool { return number == mysqlLockWaitTimeout }

func (mysqlDriver) Broken(err error) bool {
	return brokenConnection(err) || errors.Is(err, mysql.ErrInvalidConn)
}

func init() {
	RegisterDriver("mysql", mysqlDriver{})
}
