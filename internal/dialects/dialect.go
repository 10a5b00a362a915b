// Package dialects provides the SQL dialects understood by the query builder:
// identifier and string quoting, statement modifiers ("modes"), and the small
// grammar differences between the MySQL and SQLite families.
package dialects

import "strings"

// ModeKind identifies the statement a mode keyword modifies.
type ModeKind int

// Supported mode kinds.
const (
	SelectMode ModeKind = iota
	InsertMode
	ReplaceMode
	UpdateMode
	DeleteMode
	LockMode
)

// String returns the lower-case name of the mode kind.
func (k ModeKind) String() string {
	switch k {
	case SelectMode:
		return "select"
	case InsertMode:
		return "insert"
	case ReplaceMode:
		return "replace"
	case UpdateMode:
		return "update"
	case DeleteMode:
		return "delete"
	case LockMode:
		return "lock"
	}
	return "unknown"
}

// ModeRule is one slot of a statement's modifier list. Keywords sharing a slot
// are mutually exclusive: setting one replaces the other.
type ModeRule struct {
	Slot     string
	Keywords []string
}

// Dialect defines database-specific SQL behaviors.
type Dialect interface {
	// Name returns the registry name of the dialect.
	Name() string
	// QuoteIdentifier quotes a single identifier component.
	QuoteIdentifier(string) string
	// QuoteString quotes a string literal.
	QuoteString(string) string
	// Modes returns the ordered mode slots for a statement kind.
	// A nil result means the statement takes no modifiers.
	Modes(ModeKind) []ModeRule
	// RegexpOperator returns the regular expression match operator.
	RegexpOperator(negate bool) string
	// GroupByOrder reports whether GROUP BY accepts ASC/DESC.
	GroupByOrder() bool
	// IndexHint renders an index hint for already quoted index names.
	IndexHint(keyword string, indices []string, forClause string) string
	// CompoundOperand renders the right operand of UNION/INTERSECT/EXCEPT.
	CompoundOperand(query string) string
	// UpsertSQL renders the conflict tail of an INSERT for a SET list.
	UpsertSQL(set string) string
	// BeginSQL returns the statement starting a transaction.
	BeginSQL() string
	// UseDatabaseSQL returns the statement switching the default database,
	// or "" when the dialect has no such statement.
	UseDatabaseSQL(database string) string
	// DefragmentSQL returns the statement reclaiming space for a table.
	DefragmentSQL(table string) string
}

var dialects = make(map[string]Dialect)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	dialects[name] = d
}

// LookupDialect retrieves a registered dialect by name.
func LookupDialect(name string) (Dialect, bool) {
	d, ok := dialects[name]
	return d, ok
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	if d, ok := dialects[name]; ok {
		return d
	}
	panic("unsupported dialect: " + name)
}

// NormalizeMode upper-cases a mode keyword and collapses inner whitespace.
func NormalizeMode(mode string) string {
	return strings.Join(strings.Fields(strings.ToUpper(mode)), " ")
}

// ResolveMode finds the slot for a mode keyword. ok is false when the dialect
// does not accept the keyword for the given statement kind.
func ResolveMode(d Dialect, kind ModeKind, mode string) (slot, keyword string, ok bool) {
	keyword = NormalizeMode(mode)
	if keyword == "" {
		return "", "", false
	}
	for _, rule := range d.Modes(kind) {
		for _, kw := range rule.Keywords {
			if kw == keyword {
				return rule.Slot, keyword, true
			}
		}
	}
	return "", "", false
}

// single builds a rule whose slot holds exactly one keyword.
func single(keyword string) ModeRule {
	return ModeRule{Slot: keyword, Keywords: []string{keyword}}
}
