// Package escaper turns caller text into SQL fragments that are safe for
// their syntactic role: identifiers, literals, lists and sub-queries.
//
// Escaping never fails. Input of the wrong shape degrades to an empty
// fragment (or 0 for integers) so that a query built from it stays valid.
package escaper

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/coregx/gravity/internal/dialects"
	"github.com/coregx/gravity/internal/util"
)

// Escaper quotes identifiers and values for one dialect.
type Escaper struct {
	dialect dialects.Dialect
}

// New creates an escaper for the given dialect.
func New(d dialects.Dialect) *Escaper {
	return &Escaper{dialect: d}
}

// Dialect returns the dialect the escaper quotes for.
func (e *Escaper) Dialect() dialects.Dialect {
	return e.dialect
}

// Column escapes a column reference such as "table.col". An optional
// collation is appended when it is a bare word.
func (e *Escaper) Column(name string, collation ...string) string {
	return e.collate(e.escapeLocationReference(name), collation)
}

// ResultColumn escapes a select-list column with an optional alias.
// The wildcard "*" never takes an alias.
func (e *Escaper) ResultColumn(name string, alias ...string) string {
	escaped := e.escapeLocationReference(name)
	if a := first(alias); a != "" && escaped != "*" {
		return escaped + " AS " + e.dialect.QuoteIdentifier(a)
	}
	return escaped
}

// HexResultColumn selects HEX(name), aliased to alias or to name itself.
func (e *Escaper) HexResultColumn(name string, alias ...string) string {
	a := first(alias)
	if a == "" {
		a = name
	}
	return "HEX(" + e.escapeLocationReference(name) + ") AS " + e.dialect.QuoteIdentifier(a)
}

// Table escapes a table reference with an optional alias.
func (e *Escaper) Table(name string, alias ...string) string {
	escaped := e.escapeLocationReference(name)
	if a := first(alias); a != "" {
		return escaped + " AS " + e.dialect.QuoteIdentifier(a)
	}
	return escaped
}

// Value renders v as a quoted string literal. An optional collation is
// appended when it is a bare word.
func (e *Escaper) Value(v any, collation ...string) string {
	return e.collate(e.dialect.QuoteString(util.ToString(v)), collation)
}

// HexValue renders v as UNHEX('<hex>') for binary columns.
func (e *Escaper) HexValue(v any) string {
	return "UNHEX(" + e.dialect.QuoteString(hex.EncodeToString([]byte(util.ToString(v)))) + ")"
}

// IntValue coerces v to an integer. Anything not numeric yields 0.
func (e *Escaper) IntValue(v any) int64 {
	return util.ToInt64(v)
}

// FloatValue coerces v to a float. Anything not numeric yields 0.
func (e *Escaper) FloatValue(v any) float64 {
	return util.ToFloat64(v)
}

// ListValue renders a slice as "(v1,v2,...)" with every element escaped
// as a value. Non-slices and empty slices render as "".
func (e *Escaper) ListValue(v any) string {
	return e.list(v, func(item any) string { return e.Value(item) })
}

// IntListValue renders a slice as "(1,2,...)" with every element coerced
// to an integer.
func (e *Escaper) IntListValue(v any) string {
	return e.list(v, func(item any) string { return strconv.FormatInt(util.ToInt64(item), 10) })
}

// QueryValue wraps a trusted sub-query in parentheses.
func (e *Escaper) QueryValue(query string) string {
	return "(" + query + ")"
}

// IndexHint renders an index hint such as USE INDEX (`idx`). Unknown
// keywords, empty index lists and dialects without the construct yield "".
func (e *Escaper) IndexHint(keyword string, indices []string, forClause string) string {
	quoted := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx != "" {
			quoted = append(quoted, e.dialect.QuoteIdentifier(idx))
		}
	}
	return e.dialect.IndexHint(keyword, quoted, forClause)
}

func (e *Escaper) list(v any, render func(any) string) string {
	items, ok := util.ToSlice(v)
	if !ok || len(items) == 0 {
		return ""
	}

	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = render(item)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// escapeLocationReference quotes every dot-separated component; "*" stays bare.
func (e *Escaper) escapeLocationReference(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		if part != "*" {
			parts[i] = e.dialect.QuoteIdentifier(part)
		}
	}
	return strings.Join(parts, ".")
}

func (e *Escaper) collate(escaped string, collation []string) string {
	if c := first(collation); c != "" && util.IsBareWord(c) {
		return escaped + " COLLATE " + c
	}
	return escaped
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
