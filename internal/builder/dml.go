// Package builder assembles DML statements (SELECT, INSERT, REPLACE, UPDATE,
// DELETE) clause by clause for a given SQL dialect.
//
// DMLQueryBuilder concatenates the fragments it is given verbatim; callers
// that pass untrusted text use SafeQueryBuilder, which escapes every
// argument for its role before forwarding it.
package builder

import (
	"sort"
	"strings"

	"github.com/coregx/gravity/internal/dialects"
)

// DMLQueryBuilder accumulates clause fragments and renders complete
// statements. It is not safe for concurrent use.
type DMLQueryBuilder struct {
	dialect dialects.Dialect

	modes map[dialects.ModeKind]map[string]string

	selects      []string
	froms        []string
	joins        []joinClause
	where        conditionClause
	having       conditionClause
	groupBy      []string
	orderBy      []string
	limit        string
	compounds    []string
	deleteTables []string
	updateTables []string
	into         string
	columnNames  string
	values       []string
	selectStmt   string
	set          []string
	upsert       []string

	nextConnector string
}

// New creates a query builder for the dialect.
func New(d dialects.Dialect) *DMLQueryBuilder {
	return &DMLQueryBuilder{
		dialect: d,
		modes:   make(map[dialects.ModeKind]map[string]string),
	}
}

// Dialect returns the builder's dialect.
func (b *DMLQueryBuilder) Dialect() dialects.Dialect {
	return b.dialect
}

// Reset clears every clause so the builder can assemble an unrelated query.
func (b *DMLQueryBuilder) Reset() *DMLQueryBuilder {
	*b = DMLQueryBuilder{
		dialect: b.dialect,
		modes:   make(map[dialects.ModeKind]map[string]string),
	}
	return b
}

func (b *DMLQueryBuilder) setMode(kind dialects.ModeKind, mode string) *DMLQueryBuilder {
	slot, keyword, ok := dialects.ResolveMode(b.dialect, kind, mode)
	if !ok {
		return b
	}
	if b.modes[kind] == nil {
		b.modes[kind] = make(map[string]string)
	}
	b.modes[kind][slot] = keyword
	return b
}

// renderModes lists the set keywords in the dialect's grammar order.
func (b *DMLQueryBuilder) renderModes(kind dialects.ModeKind) string {
	set := b.modes[kind]
	if len(set) == 0 {
		return ""
	}

	var keywords []string
	for _, rule := range b.dialect.Modes(kind) {
		if kw, ok := set[rule.Slot]; ok {
			keywords = append(keywords, kw)
		}
	}
	return strings.Join(keywords, " ")
}

// SelectMode adds a SELECT modifier such as DISTINCT.
func (b *DMLQueryBuilder) SelectMode(mode string) *DMLQueryBuilder {
	return b.setMode(dialects.SelectMode, mode)
}

// InsertMode adds an INSERT modifier.
func (b *DMLQueryBuilder) InsertMode(mode string) *DMLQueryBuilder {
	return b.setMode(dialects.InsertMode, mode)
}

// ReplaceMode adds a REPLACE modifier.
func (b *DMLQueryBuilder) ReplaceMode(mode string) *DMLQueryBuilder {
	return b.setMode(dialects.ReplaceMode, mode)
}

// UpdateMode adds an UPDATE modifier.
func (b *DMLQueryBuilder) UpdateMode(mode string) *DMLQueryBuilder {
	return b.setMode(dialects.UpdateMode, mode)
}

// DeleteMode adds a DELETE modifier.
func (b *DMLQueryBuilder) DeleteMode(mode string) *DMLQueryBuilder {
	return b.setMode(dialects.DeleteMode, mode)
}

// LockMode sets the row locking clause of a SELECT.
func (b *DMLQueryBuilder) LockMode(mode string) *DMLQueryBuilder {
	return b.setMode(dialects.LockMode, mode)
}

// Select appends result columns.
func (b *DMLQueryBuilder) Select(columns string) *DMLQueryBuilder {
	if columns != "" {
		b.selects = append(b.selects, columns)
	}
	return b
}

// From appends a table reference, followed by optional index hints.
func (b *DMLQueryBuilder) From(table string, indexHints ...string) *DMLQueryBuilder {
	b.froms = append(b.froms, withHints(table, indexHints))
	return b
}

var joinTypes = map[string]string{
	"":                   "JOIN",
	"INNER":              "INNER JOIN",
	"CROSS":              "CROSS JOIN",
	"LEFT":               "LEFT JOIN",
	"LEFT OUTER":         "LEFT OUTER JOIN",
	"RIGHT":              "RIGHT JOIN",
	"RIGHT OUTER":        "RIGHT OUTER JOIN",
	"NATURAL":            "NATURAL JOIN",
	"NATURAL INNER":      "NATURAL INNER JOIN",
	"NATURAL LEFT":       "NATURAL LEFT JOIN",
	"NATURAL LEFT OUTER": "NATURAL LEFT OUTER JOIN",
	"NATURAL RIGHT":      "NATURAL RIGHT JOIN",
	"STRAIGHT":           "STRAIGHT_JOIN",
}

// Join appends a join of the given type (INNER, LEFT, ...). Unknown types
// fall back to INNER. Subsequent On* and Using calls constrain this join.
func (b *DMLQueryBuilder) Join(table, joinType string, indexHints ...string) *DMLQueryBuilder {
	keyword, ok := joinTypes[dialects.NormalizeMode(joinType)]
	if !ok {
		keyword = joinTypes["INNER"]
	}
	b.joins = append(b.joins, joinClause{join: keyword + " " + withHints(table, indexHints)})
	return b
}

// Using sets the USING column list of the latest join.
func (b *DMLQueryBuilder) Using(columns string) *DMLQueryBuilder {
	if len(b.joins) == 0 || columns == "" {
		return b
	}
	j := &b.joins[len(b.joins)-1]
	if j.using == "" {
		j.using = columns
	} else {
		j.using += ", " + columns
	}
	return b
}

// GroupBy appends a grouping expression. An optional order (true for ASC)
// is kept only by dialects that support ordered grouping.
func (b *DMLQueryBuilder) GroupBy(expr string, order ...bool) *DMLQueryBuilder {
	if len(order) > 0 && b.dialect.GroupByOrder() {
		expr += " " + direction(order[0])
	}
	b.groupBy = append(b.groupBy, expr)
	return b
}

// OrderBy appends an ordering expression.
func (b *DMLQueryBuilder) OrderBy(expr string, asc bool) *DMLQueryBuilder {
	b.orderBy = append(b.orderBy, expr+" "+direction(asc))
	return b
}

// Limit sets the row limit and an optional offset. An empty or "-1" offset
// means none.
func (b *DMLQueryBuilder) Limit(amount string, offset ...string) *DMLQueryBuilder {
	b.limit = "LIMIT " + amount
	if len(offset) > 0 && offset[0] != "" && offset[0] != "-1" {
		b.limit += " OFFSET " + offset[0]
	}
	return b
}

// Union appends a UNION [ALL] with a trusted sub-query.
func (b *DMLQueryBuilder) Union(query string, all bool) *DMLQueryBuilder {
	return b.compound("UNION", query, all)
}

// Intersect appends an INTERSECT [ALL] with a trusted sub-query.
func (b *DMLQueryBuilder) Intersect(query string, all bool) *DMLQueryBuilder {
	return b.compound("INTERSECT", query, all)
}

// Except appends an EXCEPT [ALL] with a trusted sub-query.
func (b *DMLQueryBuilder) Except(query string, all bool) *DMLQueryBuilder {
	return b.compound("EXCEPT", query, all)
}

func (b *DMLQueryBuilder) compound(operator, query string, all bool) *DMLQueryBuilder {
	if all {
		operator += " ALL"
	}
	b.compounds = append(b.compounds, operator+" "+b.dialect.CompoundOperand(query))
	return b
}

// Delete appends a table to delete rows from in a multi-table DELETE.
func (b *DMLQueryBuilder) Delete(tables string) *DMLQueryBuilder {
	if tables != "" {
		b.deleteTables = append(b.deleteTables, tables)
	}
	return b
}

// Into sets the INSERT/REPLACE target table.
func (b *DMLQueryBuilder) Into(table string) *DMLQueryBuilder {
	b.into = table
	return b
}

// ColumnNames sets the INSERT/REPLACE column list.
func (b *DMLQueryBuilder) ColumnNames(columns ...string) *DMLQueryBuilder {
	if len(columns) > 0 {
		b.columnNames = "(" + strings.Join(columns, ", ") + ")"
	}
	return b
}

// Values appends one row of already rendered values.
func (b *DMLQueryBuilder) Values(values ...string) *DMLQueryBuilder {
	if len(values) > 0 {
		b.values = append(b.values, "("+strings.Join(values, ", ")+")")
	}
	return b
}

// SelectStatement sets a sub-query providing the rows of an INSERT/REPLACE.
func (b *DMLQueryBuilder) SelectStatement(query string) *DMLQueryBuilder {
	b.selectStmt = query
	return b
}

// Set appends "column = value" to the SET list.
func (b *DMLQueryBuilder) Set(column, value string) *DMLQueryBuilder {
	b.set = append(b.set, column+" = "+value)
	return b
}

// SetMap appends every pair of assignments in column order.
func (b *DMLQueryBuilder) SetMap(assignments map[string]string) *DMLQueryBuilder {
	for _, column := range sortedKeys(assignments) {
		b.Set(column, assignments[column])
	}
	return b
}

// OnDuplicateKeyUpdate appends "column = value" to the conflict update of
// an INSERT.
func (b *DMLQueryBuilder) OnDuplicateKeyUpdate(column, value string) *DMLQueryBuilder {
	b.upsert = append(b.upsert, column+" = "+value)
	return b
}

// Update appends an UPDATE target table.
func (b *DMLQueryBuilder) Update(tables string) *DMLQueryBuilder {
	if tables != "" {
		b.updateTables = append(b.updateTables, tables)
	}
	return b
}

// GetSelectQuery renders the SELECT statement, or "" if no table was given.
func (b *DMLQueryBuilder) GetSelectQuery() string {
	if len(b.froms) == 0 {
		return ""
	}

	columns := "*"
	if len(b.selects) > 0 {
		columns = strings.Join(b.selects, ", ")
	}

	parts := []string{
		"SELECT",
		b.renderModes(dialects.SelectMode),
		columns,
		"FROM " + strings.Join(b.froms, ", "),
		b.renderJoins(),
		prefixed("WHERE ", b.where.render()),
		prefixed("GROUP BY ", strings.Join(b.groupBy, ", ")),
		prefixed("HAVING ", b.having.render()),
		prefixed("ORDER BY ", strings.Join(b.orderBy, ", ")),
		b.limit,
		b.renderModes(dialects.LockMode),
	}
	parts = append(parts, b.compounds...)
	return implode(parts...)
}

// GetInsertQuery renders the INSERT statement, or "" if no target was given.
func (b *DMLQueryBuilder) GetInsertQuery() string {
	if b.into == "" {
		return ""
	}

	return implode(
		"INSERT",
		b.renderModes(dialects.InsertMode),
		"INTO "+b.into,
		b.columnNames,
		b.renderRows(),
		b.dialect.UpsertSQL(strings.Join(b.upsert, ", ")),
	)
}

// GetReplaceQuery renders the REPLACE statement, or "" if no target was given.
func (b *DMLQueryBuilder) GetReplaceQuery() string {
	if b.into == "" {
		return ""
	}

	return implode(
		"REPLACE",
		b.renderModes(dialects.ReplaceMode),
		"INTO "+b.into,
		b.columnNames,
		b.renderRows(),
	)
}

// GetUpdateQuery renders the UPDATE statement, or "" if no target was given.
// ORDER BY and LIMIT apply to single-table updates only.
func (b *DMLQueryBuilder) GetUpdateQuery() string {
	if len(b.updateTables) == 0 {
		return ""
	}

	parts := []string{
		"UPDATE",
		b.renderModes(dialects.UpdateMode),
		strings.Join(b.updateTables, ", "),
		b.renderJoins(),
		prefixed("SET ", strings.Join(b.set, ", ")),
		prefixed("WHERE ", b.where.render()),
	}
	if len(b.updateTables) == 1 && len(b.joins) == 0 {
		parts = append(parts, prefixed("ORDER BY ", strings.Join(b.orderBy, ", ")), b.limit)
	}
	return implode(parts...)
}

// GetDeleteQuery renders the DELETE statement, or "" if no table was given.
// ORDER BY and LIMIT apply to single-table deletes only.
func (b *DMLQueryBuilder) GetDeleteQuery() string {
	if len(b.froms) == 0 {
		return ""
	}

	parts := []string{
		"DELETE",
		b.renderModes(dialects.DeleteMode),
		strings.Join(b.deleteTables, ", "),
		"FROM " + strings.Join(b.froms, ", "),
		b.renderJoins(),
		prefixed("WHERE ", b.where.render()),
	}
	if len(b.deleteTables) == 0 && len(b.joins) == 0 {
		parts = append(parts, prefixed("ORDER BY ", strings.Join(b.orderBy, ", ")), b.limit)
	}
	return implode(parts...)
}

// renderRows renders the row source of INSERT/REPLACE: a sub-query wins
// over VALUES, which wins over SET.
func (b *DMLQueryBuilder) renderRows() string {
	switch {
	case b.selectStmt != "":
		return b.selectStmt
	case len(b.values) > 0:
		return "VALUES " + strings.Join(b.values, ", ")
	case len(b.set) > 0:
		return "SET " + strings.Join(b.set, ", ")
	}
	return ""
}

func (b *DMLQueryBuilder) renderJoins() string {
	parts := make([]string, len(b.joins))
	for i := range b.joins {
		parts[i] = b.joins[i].render()
	}
	return strings.Join(parts, " ")
}

func withHints(table string, hints []string) string {
	parts := []string{table}
	for _, hint := range hints {
		if hint != "" {
			parts = append(parts, hint)
		}
	}
	return strings.Join(parts, " ")
}

func direction(asc bool) string {
	if asc {
		return "ASC"
	}
	return "DESC"
}

func prefixed(prefix, clause string) string {
	if clause == "" {
		return ""
	}
	return prefix + clause
}

// implode joins the non-empty parts with single spaces.
func implode(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
