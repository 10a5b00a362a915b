package core

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDAO(t *testing.T) (*DatabaseAccessObject, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	conn := newMemoryConnection(t)
	dao := NewDatabaseAccessObject(conn, slog.New(slog.NewJSONHandler(&buf, nil)), nil)

	res := conn.Query(context.Background(),
		"INSERT INTO users (name, email) VALUES ('alice', 'a@example.com'), ('bob', 'b@example.com')")
	require.False(t, res.HasFailed(), res.ErrorMessage())
	return dao, &buf
}

func TestDatabaseAccessObject_SwapConnection(t *testing.T) {
	dao, _ := newTestDAO(t)
	first := dao.Connection()
	assert.Same(t, first.QueryEscaper(), dao.Escaper())
	assert.Nil(t, dao.Pool())

	other := newMemoryConnection(t)
	dao.SwapConnection(other)
	assert.Same(t, other, dao.Connection())
	assert.Same(t, other.QueryEscaper(), dao.Escaper())
	assert.NotSame(t, first.QueryEscaper(), dao.Escaper())
}

func TestDatabaseAccessObject_ResultHelpers(t *testing.T) {
	dao, buf := newTestDAO(t)
	ctx := context.Background()
	conn := dao.Connection()

	query := dao.NewDMLQueryBuilder().
		Select("id, name").
		From("users").
		OrderBy("id", true).
		GetSelectQuery()

	rows := dao.ResultArray(conn.Query(ctx, query))
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0]["name"])

	indexed := dao.IndexedResultArray(conn.Query(ctx, query), "name")
	require.Len(t, indexed, 2)
	assert.Equal(t, int64(2), indexed["bob"]["id"])

	assert.Equal(t, "alice", dao.ResultRow(conn.Query(ctx, query))["name"])
	assert.Equal(t, []any{"alice", "bob"}, dao.ResultColumn(conn.Query(ctx, query), "name"))
	assert.Equal(t, int64(1), dao.ResultCell(conn.Query(ctx, query), "id"))
	assert.True(t, dao.ResultBoolean(conn.Query(ctx, "DELETE FROM users WHERE id = 2")))

	assert.Empty(t, buf.String(), "successful statements are not logged")
}

func TestDatabaseAccessObject_FailedResults(t *testing.T) {
	dao, buf := newTestDAO(t)
	ctx := context.Background()
	conn := dao.Connection()
	bad := "SELECT * FROM missing"

	assert.Nil(t, dao.ResultArray(conn.Query(ctx, bad)))
	assert.Nil(t, dao.IndexedResultArray(conn.Query(ctx, bad), "id"))
	assert.Nil(t, dao.ResultRow(conn.Query(ctx, bad)))
	assert.Nil(t, dao.ResultColumn(conn.Query(ctx, bad), "id"))
	assert.Nil(t, dao.ResultCell(conn.Query(ctx, bad), "id"))
	assert.False(t, dao.ResultBoolean(conn.Query(ctx, bad)))

	out := buf.String()
	assert.Equal(t, 6, bytes.Count([]byte(out), []byte(`"msg":"query failed"`)))
	assert.Contains(t, out, `"sql":"SELECT * FROM missing"`)
}

func TestDatabaseAccessObject_AsyncResults(t *testing.T) {
	dao, _ := newTestDAO(t)
	res := dao.Connection().AsyncQuery(context.Background(), "SELECT name FROM users ORDER BY id")
	assert.Equal(t, []any{"alice", "bob"}, dao.ResultColumn(res, "name"))
}

func TestDatabaseAccessObject_ResultRetry(t *testing.T) {
	conn, mock := newMockConnection(t)
	dao := NewDatabaseAccessObject(conn, nil, nil)
	ctx := context.Background()

	const stmt = "UPDATE `stock` SET `qty` = '1'"
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	timeout := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}

	t.Run("succeeds after retries", func(t *testing.T) {
		mock.ExpectExec(stmt).WillReturnError(deadlock)
		mock.ExpectExec(stmt).WillReturnError(timeout)
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 1))

		res := dao.ResultRetry(ctx, conn.Query(ctx, stmt), 5)
		assert.False(t, res.HasFailed())
		assert.Equal(t, int64(1), res.NumberOfAffectedRows())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives up after retries", func(t *testing.T) {
		mock.ExpectExec(stmt).WillReturnError(deadlock)
		mock.ExpectExec(stmt).WillReturnError(deadlock)
		mock.ExpectExec(stmt).WillReturnError(deadlock)

		res := dao.ResultRetry(ctx, conn.Query(ctx, stmt), 2)
		assert.True(t, res.HasDeadlock())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other failures are not retried", func(t *testing.T) {
		mock.ExpectExec(stmt).WillReturnError(&mysql.MySQLError{Number: 1064, Message: "syntax"})

		res := dao.ResultRetry(ctx, conn.Query(ctx, stmt), 3)
		assert.Equal(t, 1064, res.ErrorNumber())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabaseAccessObject_MasksLoggedStatements(t *testing.T) {
	dao, buf := newTestDAO(t)
	ctx := context.Background()

	assert.False(t, dao.ResultBoolean(dao.Connection().Query(ctx, "UPDATE nosuch SET password = 'hunter2'")))

	out := buf.String()
	assert.Contains(t, out, `"msg":"query failed"`)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "***REDACTED***")
}

func TestDatabaseAccessObject_SensitiveFieldsFollowConnection(t *testing.T) {
	var buf bytes.Buffer
	conn := newMemoryConnection(t, WithSensitiveFields("pin"))
	dao := NewDatabaseAccessObject(conn, slog.New(slog.NewJSONHandler(&buf, nil)), nil)

	dao.ResultBoolean(conn.Query(context.Background(), "UPDATE nosuch SET pin = '1234'"))
	assert.NotContains(t, buf.String(), "1234")
}

func TestDatabaseAccessObject_NilConnection(t *testing.T) {
	dao := NewDatabaseAccessObject(nil, nil, nil)
	assert.Nil(t, dao.Connection())
	assert.Nil(t, dao.Escaper())

	failed := newFailedResult("SELECT 1", 2003, "gone", nil)
	assert.Same(t, failed, dao.ResultRetry(context.Background(), failed, 3))
	assert.Nil(t, dao.ResultArray(failed))

	conn := newMemoryConnection(t)
	dao.SwapConnection(conn)
	assert.Same(t, conn.QueryEscaper(), dao.Escaper())

	dao.SwapConnection(nil)
	assert.Nil(t, dao.Escaper())
}
