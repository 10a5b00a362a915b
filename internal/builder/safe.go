package builder

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/coregx/gravity/internal/escaper"
)

// Hint describes an index hint attached to a table reference.
type Hint struct {
	Keyword string   // USE, IGNORE or FORCE
	Indices []string // index names, escaped as identifiers
	For     string   // optional: JOIN, ORDER BY or GROUP BY
}

// SafeQueryBuilder wraps a DMLQueryBuilder and escapes every argument for
// its syntactic role: identifiers as columns or tables, right-hand sides as
// values, limits as integers. Only sub-queries pass through unescaped.
type SafeQueryBuilder struct {
	builder *DMLQueryBuilder
	escaper *escaper.Escaper
}

// NewSafe wraps b, escaping with e.
func NewSafe(b *DMLQueryBuilder, e *escaper.Escaper) *SafeQueryBuilder {
	return &SafeQueryBuilder{builder: b, escaper: e}
}

// Builder returns the wrapped builder. Fragments passed to it are not escaped.
func (s *SafeQueryBuilder) Builder() *DMLQueryBuilder {
	return s.builder
}

// Escaper returns the escaper used for arguments.
func (s *SafeQueryBuilder) Escaper() *escaper.Escaper {
	return s.escaper
}

var aliasSeparator = regexp.MustCompile(`(?i)\s+AS\s+`)

// escapeAlias escapes "name AS alias" with the given escaping function.
func escapeAlias(expr string, escape func(name string, alias ...string) string) string {
	expr = strings.TrimSpace(expr)
	parts := aliasSeparator.Split(expr, 2)
	if len(parts) == 2 {
		return escape(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}
	return escape(expr)
}

// escapeList splits a comma separated list and escapes every element.
func escapeList(list string, escape func(string) string) []string {
	var escaped []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			escaped = append(escaped, escape(item))
		}
	}
	return escaped
}

var comparisonOperators = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, ">": true, "<=": true, ">=": true, "<=>": true,
}

// safeOperator admits comparison operators only; anything else becomes "=".
func safeOperator(operator []string) []string {
	op := operatorOrEquals(operator)
	if !comparisonOperators[op] {
		op = "="
	}
	return []string{op}
}

func (s *SafeQueryBuilder) column(name string) string {
	return s.escaper.Column(name)
}

func (s *SafeQueryBuilder) hints(hints []Hint) []string {
	rendered := make([]string, 0, len(hints))
	for _, h := range hints {
		rendered = append(rendered, s.escaper.IndexHint(h.Keyword, h.Indices, h.For))
	}
	return rendered
}

// SelectMode adds a SELECT modifier.
func (s *SafeQueryBuilder) SelectMode(mode string) *SafeQueryBuilder {
	s.builder.SelectMode(mode)
	return s
}

// InsertMode adds an INSERT modifier.
func (s *SafeQueryBuilder) InsertMode(mode string) *SafeQueryBuilder {
	s.builder.InsertMode(mode)
	return s
}

// ReplaceMode adds a REPLACE modifier.
func (s *SafeQueryBuilder) ReplaceMode(mode string) *SafeQueryBuilder {
	s.builder.ReplaceMode(mode)
	return s
}

// UpdateMode adds an UPDATE modifier.
func (s *SafeQueryBuilder) UpdateMode(mode string) *SafeQueryBuilder {
	s.builder.UpdateMode(mode)
	return s
}

// DeleteMode adds a DELETE modifier.
func (s *SafeQueryBuilder) DeleteMode(mode string) *SafeQueryBuilder {
	s.builder.DeleteMode(mode)
	return s
}

// LockMode sets the locking clause.
func (s *SafeQueryBuilder) LockMode(mode string) *SafeQueryBuilder {
	s.builder.LockMode(mode)
	return s
}

// Select appends a comma separated list of result columns, each optionally
// aliased with "AS".
func (s *SafeQueryBuilder) Select(columns string) *SafeQueryBuilder {
	escaped := escapeList(columns, func(c string) string {
		return escapeAlias(c, s.escaper.ResultColumn)
	})
	s.builder.Select(strings.Join(escaped, ", "))
	return s
}

// From appends a table reference, optionally aliased with "AS".
func (s *SafeQueryBuilder) From(table string, hints ...Hint) *SafeQueryBuilder {
	s.builder.From(escapeAlias(table, s.escaper.Table), s.hints(hints)...)
	return s
}

// Join appends a join against an escaped table reference.
func (s *SafeQueryBuilder) Join(table, joinType string, hints ...Hint) *SafeQueryBuilder {
	s.builder.Join(escapeAlias(table, s.escaper.Table), joinType, s.hints(hints)...)
	return s
}

// Using sets the USING columns of the latest join.
func (s *SafeQueryBuilder) Using(columns string) *SafeQueryBuilder {
	s.builder.Using(strings.Join(escapeList(columns, s.column), ", "))
	return s
}

// On compares two columns in the latest join constraint.
func (s *SafeQueryBuilder) On(left, right string, operator ...string) *SafeQueryBuilder {
	s.builder.On(s.column(left), s.column(right), safeOperator(operator)...)
	return s
}

// OnLike matches a column against a value pattern in the latest join.
func (s *SafeQueryBuilder) OnLike(left string, right any, negate bool) *SafeQueryBuilder {
	s.builder.OnLike(s.column(left), s.escaper.Value(right), negate)
	return s
}

// OnIn tests a column against a list of values in the latest join.
func (s *SafeQueryBuilder) OnIn(left string, values any, negate bool) *SafeQueryBuilder {
	s.builder.OnIn(s.column(left), s.escaper.ListValue(values), negate)
	return s
}

// OnBetween tests a column against a value range in the latest join.
func (s *SafeQueryBuilder) OnBetween(left string, lower, upper any, negate bool) *SafeQueryBuilder {
	s.builder.OnBetween(s.column(left), s.escaper.Value(lower), s.escaper.Value(upper), negate)
	return s
}

// OnRegexp matches a column against a pattern value in the latest join.
func (s *SafeQueryBuilder) OnRegexp(left string, right any, negate bool) *SafeQueryBuilder {
	s.builder.OnRegexp(s.column(left), s.escaper.Value(right), negate)
	return s
}

// OnNull tests a column for NULL in the latest join.
func (s *SafeQueryBuilder) OnNull(left string, negate bool) *SafeQueryBuilder {
	s.builder.OnNull(s.column(left), negate)
	return s
}

// StartOnGroup opens a group in the latest join constraint.
func (s *SafeQueryBuilder) StartOnGroup() *SafeQueryBuilder {
	s.builder.StartOnGroup()
	return s
}

// EndOnGroup closes a group in the latest join constraint.
func (s *SafeQueryBuilder) EndOnGroup() *SafeQueryBuilder {
	s.builder.EndOnGroup()
	return s
}

// Where compares a column with a value.
func (s *SafeQueryBuilder) Where(left string, right any, operator ...string) *SafeQueryBuilder {
	s.builder.Where(s.column(left), s.escaper.Value(right), safeOperator(operator)...)
	return s
}

// WhereLike matches a column against a value pattern.
func (s *SafeQueryBuilder) WhereLike(left string, right any, negate bool) *SafeQueryBuilder {
	s.builder.WhereLike(s.column(left), s.escaper.Value(right), negate)
	return s
}

// WhereIn tests a column against a list of values.
func (s *SafeQueryBuilder) WhereIn(left string, values any, negate bool) *SafeQueryBuilder {
	s.builder.WhereIn(s.column(left), s.escaper.ListValue(values), negate)
	return s
}

// WhereBetween tests a column against a value range.
func (s *SafeQueryBuilder) WhereBetween(left string, lower, upper any, negate bool) *SafeQueryBuilder {
	s.builder.WhereBetween(s.column(left), s.escaper.Value(lower), s.escaper.Value(upper), negate)
	return s
}

// WhereRegexp matches a column against a pattern value.
func (s *SafeQueryBuilder) WhereRegexp(left string, right any, negate bool) *SafeQueryBuilder {
	s.builder.WhereRegexp(s.column(left), s.escaper.Value(right), negate)
	return s
}

// WhereNull tests a column for NULL.
func (s *SafeQueryBuilder) WhereNull(left string, negate bool) *SafeQueryBuilder {
	s.builder.WhereNull(s.column(left), negate)
	return s
}

// StartWhereGroup opens a WHERE group.
func (s *SafeQueryBuilder) StartWhereGroup() *SafeQueryBuilder {
	s.builder.StartWhereGroup()
	return s
}

// EndWhereGroup closes a WHERE group.
func (s *SafeQueryBuilder) EndWhereGroup() *SafeQueryBuilder {
	s.builder.EndWhereGroup()
	return s
}

// Having compares a column with a value in HAVING.
func (s *SafeQueryBuilder) Having(left string, right any, operator ...string) *SafeQueryBuilder {
	s.builder.Having(s.column(left), s.escaper.Value(right), safeOperator(operator)...)
	return s
}

// HavingLike matches a column against a value pattern in HAVING.
func (s *SafeQueryBuilder) HavingLike(left string, right any, negate bool) *SafeQueryBuilder {
	s.builder.HavingLike(s.column(left), s.escaper.Value(right), negate)
	return s
}

// HavingIn tests a column against a list of values in HAVING.
func (s *SafeQueryBuilder) HavingIn(left string, values any, negate bool) *SafeQueryBuilder {
	s.builder.HavingIn(s.column(left), s.escaper.ListValue(values), negate)
	return s
}

// HavingBetween tests a column against a value range in HAVING.
func (s *SafeQueryBuilder) HavingBetween(left string, lower, upper any, negate bool) *SafeQueryBuilder {
	s.builder.HavingBetween(s.column(left), s.escaper.Value(lower), s.escaper.Value(upper), negate)
	return s
}

// HavingRegexp matches a column against a pattern value in HAVING.
func (s *SafeQueryBuilder) HavingRegexp(left string, right any, negate bool) *SafeQueryBuilder {
	s.builder.HavingRegexp(s.column(left), s.escaper.Value(right), negate)
	return s
}

// HavingNull tests a column for NULL in HAVING.
func (s *SafeQueryBuilder) HavingNull(left string, negate bool) *SafeQueryBuilder {
	s.builder.HavingNull(s.column(left), negate)
	return s
}

// StartHavingGroup opens a HAVING group.
func (s *SafeQueryBuilder) StartHavingGroup() *SafeQueryBuilder {
	s.builder.StartHavingGroup()
	return s
}

// EndHavingGroup closes a HAVING group.
func (s *SafeQueryBuilder) EndHavingGroup() *SafeQueryBuilder {
	s.builder.EndHavingGroup()
	return s
}

// Or joins the next condition with OR.
func (s *SafeQueryBuilder) Or() *SafeQueryBuilder {
	s.builder.Or()
	return s
}

// And joins the next condition with AND.
func (s *SafeQueryBuilder) And() *SafeQueryBuilder {
	s.builder.And()
	return s
}

// GroupBy groups by a column.
func (s *SafeQueryBuilder) GroupBy(column string, order ...bool) *SafeQueryBuilder {
	s.builder.GroupBy(s.column(column), order...)
	return s
}

// OrderBy orders by a column.
func (s *SafeQueryBuilder) OrderBy(column string, asc bool) *SafeQueryBuilder {
	s.builder.OrderBy(s.column(column), asc)
	return s
}

// Limit sets the row limit and an optional offset, both coerced to integers.
func (s *SafeQueryBuilder) Limit(amount any, offset ...any) *SafeQueryBuilder {
	off := int64(-1)
	if len(offset) > 0 {
		off = s.escaper.IntValue(offset[0])
	}
	s.builder.Limit(strconv.FormatInt(s.escaper.IntValue(amount), 10), strconv.FormatInt(off, 10))
	return s
}

// Union appends a UNION with a trusted sub-query.
func (s *SafeQueryBuilder) Union(query string, all bool) *SafeQueryBuilder {
	s.builder.Union(query, all)
	return s
}

// Intersect appends an INTERSECT with a trusted sub-query.
func (s *SafeQueryBuilder) Intersect(query string, all bool) *SafeQueryBuilder {
	s.builder.Intersect(query, all)
	return s
}

// Except appends an EXCEPT with a trusted sub-query.
func (s *SafeQueryBuilder) Except(query string, all bool) *SafeQueryBuilder {
	s.builder.Except(query, all)
	return s
}

// Delete names the tables of a multi-table DELETE.
func (s *SafeQueryBuilder) Delete(tables string) *SafeQueryBuilder {
	s.builder.Delete(strings.Join(escapeList(tables, func(t string) string { return s.escaper.Table(t) }), ", "))
	return s
}

// Into sets the INSERT/REPLACE target table.
func (s *SafeQueryBuilder) Into(table string) *SafeQueryBuilder {
	s.builder.Into(s.escaper.Table(strings.TrimSpace(table)))
	return s
}

// ColumnNames sets the INSERT/REPLACE columns. Each argument may itself be
// a comma separated list.
func (s *SafeQueryBuilder) ColumnNames(columns ...string) *SafeQueryBuilder {
	var escaped []string
	for _, list := range columns {
		escaped = append(escaped, escapeList(list, s.column)...)
	}
	s.builder.ColumnNames(escaped...)
	return s
}

// Values appends one row of values.
func (s *SafeQueryBuilder) Values(values ...any) *SafeQueryBuilder {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = s.escaper.Value(v)
	}
	s.builder.Values(escaped...)
	return s
}

// SelectStatement sets a trusted sub-query providing INSERT/REPLACE rows.
func (s *SafeQueryBuilder) SelectStatement(query string) *SafeQueryBuilder {
	s.builder.SelectStatement(query)
	return s
}

// Set appends "column = value".
func (s *SafeQueryBuilder) Set(column string, value any) *SafeQueryBuilder {
	s.builder.Set(s.column(column), s.escaper.Value(value))
	return s
}

// SetMap appends every assignment in column order.
func (s *SafeQueryBuilder) SetMap(assignments map[string]any) *SafeQueryBuilder {
	for _, column := range sortedKeys(assignments) {
		s.Set(column, assignments[column])
	}
	return s
}

// OnDuplicateKeyUpdate appends "column = value" to the conflict update.
func (s *SafeQueryBuilder) OnDuplicateKeyUpdate(column string, value any) *SafeQueryBuilder {
	s.builder.OnDuplicateKeyUpdate(s.column(column), s.escaper.Value(value))
	return s
}

// Update names the UPDATE target tables, optionally aliased with "AS".
func (s *SafeQueryBuilder) Update(tables string) *SafeQueryBuilder {
	escaped := escapeList(tables, func(t string) string {
		return escapeAlias(t, s.escaper.Table)
	})
	s.builder.Update(strings.Join(escaped, ", "))
	return s
}

// Reset clears every clause.
func (s *SafeQueryBuilder) Reset() *SafeQueryBuilder {
	s.builder.Reset()
	return s
}

// GetSelectQuery renders the SELECT statement.
func (s *SafeQueryBuilder) GetSelectQuery() string { return s.builder.GetSelectQuery() }

// GetInsertQuery renders the INSERT statement.
func (s *SafeQueryBuilder) GetInsertQuery() string { return s.builder.GetInsertQuery() }

// GetReplaceQuery renders the REPLACE statement.
func (s *SafeQueryBuilder) GetReplaceQuery() string { return s.builder.GetReplaceQuery() }

// GetUpdateQuery renders the UPDATE statement.
func (s *SafeQueryBuilder) GetUpdateQuery() string { return s.builder.GetUpdateQuery() }

// GetDeleteQuery renders the DELETE statement.
func (s *SafeQueryBuilder) GetDeleteQuery() string { return s.builder.GetDeleteQuery() }
