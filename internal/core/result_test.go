package core

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []Row {
	return []Row{
		{"id": int64(1), "name": "alice"},
		{"id": int64(2), "name": "bob"},
		{"id": int64(3), "name": "carol"},
	}
}

func TestQueryResult_Cursor(t *testing.T) {
	res := newRowsResult("SELECT id, name FROM users", []string{"id", "name"}, sampleRows())

	assert.False(t, res.HasFailed())
	assert.Equal(t, int64(3), res.NumberOfRows())
	assert.Equal(t, int64(3), res.NumberOfAffectedRows())

	assert.Equal(t, Row{"id": int64(1), "name": "alice"}, res.ResultRow())
	assert.Equal(t, "bob", res.ResultCell("name"))
	assert.Equal(t, []any{int64(3)}, res.ResultColumn("id"))

	assert.Equal(t, Row{}, res.ResultRow())
	assert.Nil(t, res.ResultCell("name"))
	assert.Empty(t, res.ResultColumn("id"))
	assert.Empty(t, res.ResultArray())
	assert.Equal(t, int64(3), res.NumberOfRows(), "row count does not depend on the cursor")
}

func TestQueryResult_ResultArray(t *testing.T) {
	res := newRowsResult("SELECT id, name FROM users", []string{"id", "name"}, sampleRows())
	res.ResultRow()

	rows := res.ResultArray()
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[0]["name"])
	assert.Nil(t, rows[0]["missing"])
}

func TestQueryResult_Empty(t *testing.T) {
	res := newRowsResult("SELECT id FROM users", []string{"id"}, []Row{})

	assert.False(t, res.HasFailed())
	assert.Zero(t, res.NumberOfRows())
	assert.NotNil(t, res.ResultArray())
	assert.Empty(t, res.ResultArray())
	assert.Equal(t, Row{}, res.ResultRow())
}

func TestQueryResult_Exec(t *testing.T) {
	res := newExecResult("INSERT INTO users (name) VALUES ('x')", 42, 1)

	assert.False(t, res.HasFailed())
	assert.NoError(t, res.Err())
	assert.Equal(t, int64(42), res.InsertID())
	assert.Equal(t, int64(1), res.NumberOfAffectedRows())
	assert.Zero(t, res.NumberOfRows())
	assert.Empty(t, res.ResultArray())
}

func TestQueryResult_Failed(t *testing.T) {
	d := mysqlDriver{}
	tests := []struct {
		name        string
		number      int
		deadlock    bool
		lockTimeout bool
	}{
		{"syntax error", 1064, false, false},
		{"deadlock", 1213, true, false},
		{"lock wait timeout", 1205, false, true},
		{"no number", 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newFailedResult("UPDATE t SET a = 1", tt.number, "boom", d)

			assert.True(t, res.HasFailed())
			assert.Equal(t, tt.number, res.ErrorNumber())
			assert.Equal(t, "boom", res.ErrorMessage())
			assert.Equal(t, tt.deadlock, res.HasDeadlock())
			assert.Equal(t, tt.lockTimeout, res.HasLockTimeout())
			assert.EqualError(t, res.Err(), "query failed ("+strconv.Itoa(tt.number)+"): boom")
			assert.Empty(t, res.ResultArray())
		})
	}
}

func TestAsyncQueryResult_ReapsOnce(t *testing.T) {
	pending := make(chan *QueryResult, 1)
	res := newPendingResult("SELECT id, name FROM users", pending)

	assert.False(t, res.Fetched())
	assert.Equal(t, "SELECT id, name FROM users", res.Query())
	assert.False(t, res.Fetched())

	pending <- newRowsResult("SELECT id, name FROM users", []string{"id", "name"}, sampleRows())

	assert.Equal(t, int64(3), res.NumberOfRows())
	assert.True(t, res.Fetched())

	// Further accessors read the memoized result; the channel is not
	// received from again.
	assert.Equal(t, "alice", res.ResultCell("name"))
	assert.Equal(t, Row{"id": int64(2), "name": "bob"}, res.ResultRow())
	assert.Len(t, res.ResultArray(), 1)
	assert.Same(t, res.Reap(), res.Reap())
}

func TestAsyncQueryResult_BlocksUntilComplete(t *testing.T) {
	pending := make(chan *QueryResult, 1)
	res := newPendingResult("DELETE FROM users", pending)

	go func() {
		time.Sleep(20 * time.Millisecond)
		pending <- newExecResult("DELETE FROM users", 0, 3)
	}()

	assert.Equal(t, int64(3), res.NumberOfAffectedRows())
	assert.False(t, res.HasFailed())
	assert.NoError(t, res.Err())
}

func TestAsyncQueryResult_Fetched(t *testing.T) {
	failed := newFailedResult("SELECT 1", 2003, "Can't connect", mysqlDriver{})
	res := newFetchedResult(failed)

	assert.True(t, res.Fetched())
	assert.Same(t, failed, res.Reap())
	assert.Equal(t, "SELECT 1", res.Query())
	assert.True(t, res.HasFailed())
	assert.Equal(t, 2003, res.ErrorNumber())
	assert.Equal(t, "Can't connect", res.ErrorMessage())
	assert.False(t, res.HasDeadlock())
	assert.False(t, res.HasLockTimeout())
	assert.Zero(t, res.InsertID())
	assert.Empty(t, res.ResultColumn("id"))
}

func TestStatsSnapshot(t *testing.T) {
	var s queryStats
	s.record(newExecResult("INSERT", 1, 1), 10*time.Millisecond, false, false)
	s.record(newFailedResult("UPDATE", 1213, "deadlock", mysqlDriver{}), 30*time.Millisecond, true, true)

	snap := s.snapshot()
	assert.Equal(t, int64(2), snap.Queries)
	assert.Equal(t, int64(1), snap.AsyncQueries)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(1), snap.SlowQueries)
	assert.Equal(t, int64(1), snap.Deadlocks)
	assert.Equal(t, 20*time.Millisecond, snap.AvgQueryDuration())
	assert.Contains(t, snap.String(), "queries=2")

	assert.Zero(t, StatsSnapshot{}.AvgQueryDuration())
}
