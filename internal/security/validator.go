// Package security provides statement validation and audit logging for
// connections. Statements carry their values inline, so validation looks at
// the SQL text outside of quoted literals and identifiers.
package security

import (
	"errors"
	"regexp"
	"strings"
)

// ErrDangerousPattern is returned by ValidateQuery when a statement matches
// a known injection pattern.
var ErrDangerousPattern = errors.New("dangerous SQL pattern detected: query contains unsafe construct")

// Validator validates SQL statements against dangerous patterns.
type Validator struct {
	patterns []*regexp.Regexp
	strict   bool
}

// ValidatorOption configures the Validator.
type ValidatorOption func(*Validator)

// WithStrict enables strict validation mode (more aggressive).
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator creates a new SQL injection validator with default dangerous patterns.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		patterns: compilePatterns(dangerousPatterns),
		strict:   false,
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.strict {
		v.patterns = append(v.patterns, compilePatterns(strictPatterns)...)
	}

	return v
}

// dangerousPatterns are matched against the upper-cased statement after
// every quoted token has been collapsed to an empty one.
var dangerousPatterns = []string{
	// Comments
	`--(\s|$)`,
	`/\*`,
	`#`,

	// Stacked statements
	`;\s*(DROP|DELETE|TRUNCATE|ALTER|CREATE|INSERT|UPDATE|REPLACE|ATTACH|GRANT)\b`,

	// File access and data exfiltration
	`\bINTO\s+(OUTFILE|DUMPFILE)\b`,
	`\bLOAD_FILE\s*\(`,
	`\bLOAD\s+DATA\b`,
	`\bATTACH\s+DATABASE\b`,
	`\bINFORMATION_SCHEMA\b`,

	// Timing attacks
	`\bSLEEP\s*\(`,
	`\bBENCHMARK\s*\(`,

	// Tautologies. Quoted operands are empty after normalization.
	`\bOR\s+1\s*=\s*1\b`,
	`\bOR\s+''\s*=\s*''`,
	`\bAND\s+1\s*=\s*0\b`,
}

// strictPatterns may have false positives but provide maximum security.
var strictPatterns = []string{
	`;`,           // Any statement separator
	`\bUNION\b`,   // Any UNION
	`\bEXEC\b`,    // Any EXEC
	`\bEXECUTE\b`, // Any EXECUTE
	`\bPRAGMA\b`,  // SQLite configuration
}

// quotedToken matches single-quoted literals (backslash or doubled-quote
// escapes), double-quoted strings and backquoted identifiers.
var quotedToken = regexp.MustCompile("'(?:[^'\\\\]|\\\\.|'')*'|\"(?:[^\"\\\\]|\\\\.|\"\")*\"|`(?:[^`]|``)*`")

// ValidateQuery checks if a statement contains dangerous SQL injection
// patterns outside of its quoted literals.
func (v *Validator) ValidateQuery(query string) error {
	normalized := strings.ToUpper(normalize(query))

	for _, pattern := range v.patterns {
		if pattern.MatchString(normalized) {
			return ErrDangerousPattern
		}
	}

	return nil
}

// normalize collapses each quoted token to an empty pair of its quotes.
func normalize(query string) string {
	return quotedToken.ReplaceAllStringFunc(query, func(tok string) string {
		return tok[:1] + tok[:1]
	})
}

// compilePatterns compiles string patterns to regexp.Regexp.
func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
