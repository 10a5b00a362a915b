// Package analyzer turns EXPLAIN output into a dialect-neutral QueryPlan.
// It does not talk to the database itself: callers run the statement
// returned by Statement and hand the buffered rows to Parse.
package analyzer

import (
	"errors"
	"fmt"
)

// ErrUnsupportedDialect is returned for dialects without an EXPLAIN parser.
var ErrUnsupportedDialect = errors.New("analyzer: unsupported dialect")

// QueryPlan represents a query execution plan.
type QueryPlan struct {
	Cost          float64 // estimated query cost, MySQL only
	EstimatedRows int64   // estimated number of rows to be examined

	UsesIndex bool   // true if query uses any index
	IndexName string // first index reported by the plan
	FullScan  bool   // true if a full table scan is performed

	UsingFilesort  bool // MySQL: ORDER BY or GROUP BY needs a filesort
	UsingTemporary bool // MySQL: GROUP BY needs a temporary table
	RowsExamined   int64
	RowsProduced   int64

	RawOutput string // EXPLAIN output as returned by the server
	Database  string // dialect name: "mysql" or "sqlite"
}

// Statement returns the EXPLAIN statement for query.
func Statement(dialect, query string) (string, error) {
	switch dialect {
	case "mysql":
		return "EXPLAIN FORMAT=JSON " + query, nil
	case "sqlite", "sqlite3":
		return "EXPLAIN QUERY PLAN " + query, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialect)
}

// Parse builds a plan from the rows returned by the statement from Statement.
func Parse(dialect string, rows []map[string]any) (*QueryPlan, error) {
	switch dialect {
	case "mysql":
		return parseMySQLRows(rows)
	case "sqlite", "sqlite3":
		return parseSQLiteRows(rows), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialect)
}
