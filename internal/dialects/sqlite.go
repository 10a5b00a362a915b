package dialects

import (
	"strings"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

var sqliteConflict = ModeRule{
	Slot:     "conflict",
	Keywords: []string{"OR ROLLBACK", "OR ABORT", "OR REPLACE", "OR FAIL", "OR IGNORE"},
}

var sqliteModes = map[ModeKind][]ModeRule{
	SelectMode: {
		{Slot: "duplicates", Keywords: []string{"ALL", "DISTINCT"}},
	},
	InsertMode: {sqliteConflict},
	UpdateMode: {sqliteConflict},
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

// QuoteIdentifier quotes a SQLite identifier using backticks. A double
// quoted name that matches no column is read as a string literal.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// QuoteString quotes a SQLite string literal by doubling single quotes.
func (d *SQLiteDialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Modes returns the SQLite modifier slots for kind. DELETE, REPLACE and
// locking take none.
func (d *SQLiteDialect) Modes(kind ModeKind) []ModeRule {
	return sqliteModes[kind]
}

// RegexpOperator returns REGEXP or NOT REGEXP.
func (d *SQLiteDialect) RegexpOperator(negate bool) string {
	if negate {
		return "NOT REGEXP"
	}
	return "REGEXP"
}

// GroupByOrder reports false.
func (d *SQLiteDialect) GroupByOrder() bool {
	return false
}

// IndexHint maps USE/FORCE of a single index to INDEXED BY and IGNORE to
// NOT INDEXED. Anything else has no SQLite equivalent.
func (d *SQLiteDialect) IndexHint(keyword string, indices []string, forClause string) string {
	if forClause != "" {
		return ""
	}
	switch NormalizeMode(keyword) {
	case "USE", "FORCE":
		if len(indices) == 1 {
			return "INDEXED BY " + indices[0]
		}
	case "IGNORE":
		return "NOT INDEXED"
	}
	return ""
}

// CompoundOperand returns the query unchanged; SQLite rejects parenthesized
// compound members.
func (d *SQLiteDialect) CompoundOperand(query string) string {
	return query
}

// UpsertSQL generates SQLite UPSERT syntax using ON CONFLICT.
func (d *SQLiteDialect) UpsertSQL(set string) string {
	if set == "" {
		return ""
	}
	return "ON CONFLICT DO UPDATE SET " + set
}

// BeginSQL returns BEGIN.
func (d *SQLiteDialect) BeginSQL() string {
	return "BEGIN"
}

// UseDatabaseSQL returns "": SQLite databases are files.
func (d *SQLiteDialect) UseDatabaseSQL(_ string) string {
	return ""
}

// DefragmentSQL returns VACUUM. SQLite vacuums the whole database.
func (d *SQLiteDialect) DefragmentSQL(_ string) string {
	return "VACUUM"
}
