package dialects

import (
	"strings"
)

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

var mysqlModes = map[ModeKind][]ModeRule{
	SelectMode: {
		{Slot: "duplicates", Keywords: []string{"ALL", "DISTINCT", "DISTINCTROW"}},
		single("HIGH_PRIORITY"),
		single("STRAIGHT_JOIN"),
		{Slot: "size", Keywords: []string{"SQL_SMALL_RESULT", "SQL_BIG_RESULT"}},
		single("SQL_BUFFER_RESULT"),
		{Slot: "cache", Keywords: []string{"SQL_CACHE", "SQL_NO_CACHE"}},
		single("SQL_CALC_FOUND_ROWS"),
	},
	DeleteMode: {
		single("LOW_PRIORITY"),
		single("QUICK"),
		single("IGNORE"),
	},
	InsertMode: {
		{Slot: "priority", Keywords: []string{"LOW_PRIORITY", "DELAYED", "HIGH_PRIORITY"}},
		single("IGNORE"),
	},
	ReplaceMode: {
		{Slot: "priority", Keywords: []string{"LOW_PRIORITY", "DELAYED"}},
	},
	UpdateMode: {
		single("LOW_PRIORITY"),
		single("IGNORE"),
	},
	LockMode: {
		{Slot: "lock", Keywords: []string{"FOR UPDATE", "LOCK IN SHARE MODE", "FOR SHARE"}},
	},
}

// mysqlStringReplacer mirrors mysql_real_escape_string.
var mysqlStringReplacer = strings.NewReplacer(
	"\\", "\\\\",
	"\x00", "\\0",
	"\n", "\\n",
	"\r", "\\r",
	"'", "\\'",
	"\"", "\\\"",
	"\x1a", "\\Z",
)

// Name returns "mysql".
func (d *MySQLDialect) Name() string {
	return "mysql"
}

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// QuoteString quotes a MySQL string literal with backslash escaping.
func (d *MySQLDialect) QuoteString(s string) string {
	return "'" + mysqlStringReplacer.Replace(s) + "'"
}

// Modes returns the MySQL modifier slots for kind.
func (d *MySQLDialect) Modes(kind ModeKind) []ModeRule {
	return mysqlModes[kind]
}

// RegexpOperator returns RLIKE or NOT RLIKE.
func (d *MySQLDialect) RegexpOperator(negate bool) string {
	if negate {
		return "NOT RLIKE"
	}
	return "RLIKE"
}

// GroupByOrder reports true; MySQL accepts GROUP BY col ASC|DESC.
func (d *MySQLDialect) GroupByOrder() bool {
	return true
}

// IndexHint renders USE|IGNORE|FORCE INDEX [FOR JOIN|ORDER BY|GROUP BY] (idx, ...).
func (d *MySQLDialect) IndexHint(keyword string, indices []string, forClause string) string {
	if len(indices) == 0 {
		return ""
	}

	keyword = NormalizeMode(keyword)
	switch keyword {
	case "USE", "IGNORE", "FORCE":
	default:
		return ""
	}

	hint := keyword + " INDEX "
	switch forClause = NormalizeMode(forClause); forClause {
	case "":
	case "JOIN", "ORDER BY", "GROUP BY":
		hint += "FOR " + forClause + " "
	default:
		return ""
	}

	return hint + "(" + strings.Join(indices, ", ") + ")"
}

// CompoundOperand parenthesizes the operand.
func (d *MySQLDialect) CompoundOperand(query string) string {
	return "(" + query + ")"
}

// UpsertSQL generates MySQL UPSERT syntax using ON DUPLICATE KEY UPDATE.
func (d *MySQLDialect) UpsertSQL(set string) string {
	if set == "" {
		return ""
	}
	return "ON DUPLICATE KEY UPDATE " + set
}

// BeginSQL returns START TRANSACTION.
func (d *MySQLDialect) BeginSQL() string {
	return "START TRANSACTION"
}

// UseDatabaseSQL returns a USE statement.
func (d *MySQLDialect) UseDatabaseSQL(database string) string {
	return "USE " + d.QuoteIdentifier(database)
}

// DefragmentSQL returns OPTIMIZE TABLE for the quoted table.
func (d *MySQLDialect) DefragmentSQL(table string) string {
	return "OPTIMIZE TABLE " + table
}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}
