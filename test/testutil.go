//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/coregx/gravity"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DatabaseSetup holds a configured database and its container.
type DatabaseSetup struct {
	Config    gravity.DatabaseConfig
	Container testcontainers.Container
}

// Close terminates the container.
func (ds *DatabaseSetup) Close() {
	if ds.Container != nil {
		ds.Container.Terminate(context.Background()) //nolint:errcheck
	}
}

// Connection returns a new connection to the test database, closed with t.
func (ds *DatabaseSetup) Connection(t *testing.T, opts ...gravity.Option) *gravity.Connection {
	t.Helper()
	conn, err := gravity.NewConnection(ds.Config, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck
	return conn
}

// SetupMySQLTestDB starts MySQL with testcontainers, or uses the server
// named by MYSQL_TEST_DSN when set.
func SetupMySQLTestDB(t *testing.T) *DatabaseSetup {
	ctx := context.Background()

	if dsn := os.Getenv("MYSQL_TEST_DSN"); dsn != "" {
		parsed, err := gomysql.ParseDSN(dsn)
		require.NoError(t, err)
		return &DatabaseSetup{Config: gravity.DatabaseConfig{
			Driver:   "mysql",
			RWHost:   hostOf(parsed.Addr),
			Port:     portOf(parsed.Addr),
			Username: parsed.User,
			Password: parsed.Passwd,
			Database: parsed.DBName,
		}}
	}

	container, err := mysql.Run(
		ctx,
		"mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("user"),
		mysql.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for MySQL integration tests: " + err.Error())
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	return &DatabaseSetup{
		Config: gravity.DatabaseConfig{
			Driver:         "mysql",
			RWHost:         host,
			Port:           port.Int(),
			Username:       "user",
			Password:       "password",
			Database:       "testdb",
			Charset:        "utf8mb4",
			ConnectTimeout: 10 * time.Second,
		},
		Container: container,
	}
}

// CreateMessagesTable creates the messages table used by the tests.
func CreateMessagesTable(t *testing.T, conn *gravity.Connection) {
	t.Helper()
	res := conn.Query(context.Background(), `
		CREATE TABLE IF NOT EXISTS messages (
			id INT AUTO_INCREMENT PRIMARY KEY,
			mailbox_id INT NOT NULL,
			uid INT NOT NULL,
			status INT DEFAULT 1,
			subject TEXT,
			UNIQUE KEY mailbox_uid (mailbox_id, uid)
		) ENGINE=InnoDB
	`)
	require.False(t, res.HasFailed(), res.ErrorMessage())
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func portOf(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}
