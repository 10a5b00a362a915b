package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/coregx/gravity/internal/util"
)

// mysqlExplainRoot is the root of EXPLAIN FORMAT=JSON output.
type mysqlExplainRoot struct {
	QueryBlock mysqlQueryBlock `json:"query_block"`
}

type mysqlQueryBlock struct {
	SelectID   int               `json:"select_id"`
	CostInfo   mysqlCostInfo     `json:"cost_info"`
	Table      *mysqlTableAccess `json:"table"`
	NestedLoop []mysqlLoopEntry  `json:"nested_loop"`
	Grouping   *mysqlOperation   `json:"grouping_operation"`
	Ordering   *mysqlOperation   `json:"ordering_operation"`
}

// mysqlLoopEntry is one member of a nested_loop array.
type mysqlLoopEntry struct {
	Table *mysqlTableAccess `json:"table"`
}

// mysqlOperation covers grouping_operation and ordering_operation nodes,
// which may wrap each other.
type mysqlOperation struct {
	UsingTemporaryTable bool              `json:"using_temporary_table"`
	UsingFilesort       bool              `json:"using_filesort"`
	Table               *mysqlTableAccess `json:"table"`
	NestedLoop          []mysqlLoopEntry  `json:"nested_loop"`
	Grouping            *mysqlOperation   `json:"grouping_operation"`
}

type mysqlTableAccess struct {
	TableName           string        `json:"table_name"`
	AccessType          string        `json:"access_type"` // ALL, index, range, ref, eq_ref, const, system
	PossibleKeys        []string      `json:"possible_keys"`
	Key                 string        `json:"key"`
	RowsExaminedPerScan int64         `json:"rows_examined_per_scan"`
	RowsProducedPerJoin int64         `json:"rows_produced_per_join"`
	CostInfo            mysqlCostInfo `json:"cost_info"`
}

type mysqlCostInfo struct {
	QueryCost  string `json:"query_cost"`
	ReadCost   string `json:"read_cost"`
	EvalCost   string `json:"eval_cost"`
	PrefixCost string `json:"prefix_cost"`
}

// parseMySQLRows reads the single EXPLAIN column of the single row.
func parseMySQLRows(rows []map[string]any) (*QueryPlan, error) {
	if len(rows) == 0 {
		return nil, errors.New("analyzer: empty EXPLAIN output")
	}
	for _, v := range rows[0] {
		return parseMySQLExplain(util.ToString(v))
	}
	return nil, errors.New("analyzer: EXPLAIN row has no columns")
}

// parseMySQLExplain parses MySQL EXPLAIN JSON output into a QueryPlan.
func parseMySQLExplain(rawJSON string) (*QueryPlan, error) {
	var root mysqlExplainRoot
	if err := json.Unmarshal([]byte(rawJSON), &root); err != nil {
		return nil, fmt.Errorf("analyzer: failed to unmarshal EXPLAIN JSON: %w", err)
	}

	plan := &QueryPlan{
		Cost:      parseFloatOrZero(root.QueryBlock.CostInfo.QueryCost),
		RawOutput: rawJSON,
		Database:  "mysql",
	}

	qb := &root.QueryBlock
	updateMySQLTableMetrics(qb.Table, plan)
	processNestedLoop(qb.NestedLoop, plan)
	processOperation(qb.Grouping, plan)
	processOperation(qb.Ordering, plan)

	return plan, nil
}

func processNestedLoop(loop []mysqlLoopEntry, plan *QueryPlan) {
	for _, entry := range loop {
		updateMySQLTableMetrics(entry.Table, plan)
	}
}

func processOperation(op *mysqlOperation, plan *QueryPlan) {
	if op == nil {
		return
	}
	if op.UsingFilesort {
		plan.UsingFilesort = true
	}
	if op.UsingTemporaryTable {
		plan.UsingTemporary = true
	}
	updateMySQLTableMetrics(op.Table, plan)
	processNestedLoop(op.NestedLoop, plan)
	processOperation(op.Grouping, plan)
}

func updateMySQLTableMetrics(table *mysqlTableAccess, plan *QueryPlan) {
	if table == nil {
		return
	}

	if table.Key != "" {
		plan.UsesIndex = true
		if plan.IndexName == "" {
			plan.IndexName = table.Key
		}
	}

	if table.AccessType == "ALL" {
		plan.FullScan = true
	}

	if table.RowsExaminedPerScan > 0 {
		plan.EstimatedRows += table.RowsExaminedPerScan
		plan.RowsExamined += table.RowsExaminedPerScan
	}

	if table.RowsProducedPerJoin > 0 {
		plan.RowsProduced += table.RowsProducedPerJoin
	}
}

func parseFloatOrZero(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
