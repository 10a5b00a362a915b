package logger

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// stringLiteral matches a quoted SQL string in either escaping convention:
// backslash escapes (MySQL) or doubled quotes (SQLite).
const stringLiteral = `'(?:[^'\\]|\\.|'')*'`

var (
	literalPattern    = regexp.MustCompile(stringLiteral)
	rowSourcePattern  = regexp.MustCompile(`(?i)^\s*(INSERT|REPLACE)\b`)
	dsnPasswordRegexp = regexp.MustCompile(`^([^:@/]*):([^@]*)@`)
)

// Sanitizer masks sensitive data in logged SQL text. Statements carry their
// values inline, so the sanitizer works on string literals: literals compared
// with or assigned to a sensitive column are replaced by the mask value.
type Sanitizer struct {
	sensitiveFields []string
	maskValue       string
	// Compiled patterns for faster matching
	patterns    []*regexp.Regexp
	assignments *regexp.Regexp
}

// NewSanitizer creates a new sanitizer with the specified sensitive field names.
// If no fields are provided, a default set of common sensitive field names is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		// Default sensitive field names (common patterns)
		sensitiveFields = []string{
			"password", "passwd", "pwd",
			"token", "api_key", "apikey", "api_token",
			"secret", "auth", "authorization",
			"credit_card", "card_number", "cvv", "cvc",
			"ssn", "social_security",
			"private_key", "priv_key",
		}
	}

	quoted := make([]string, 0, len(sensitiveFields))
	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		// Match field name in SQL (case-insensitive, with word boundaries)
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(field)+`\b`))
		quoted = append(quoted, regexp.QuoteMeta(field))
	}

	assignments := regexp.MustCompile(
		"(?i)(\\b(?:" + strings.Join(quoted, "|") + ")\\b[`\"]?\\s*(?:=|<>|!=|LIKE)\\s*)" + stringLiteral)

	return &Sanitizer{
		sensitiveFields: sensitiveFields,
		maskValue:       "***REDACTED***",
		patterns:        patterns,
		assignments:     assignments,
	}
}

// MaskSQL returns sql with sensitive literals replaced by the mask value.
// INSERT and REPLACE statements naming a sensitive column have every string
// literal masked, since their values are positional.
func (s *Sanitizer) MaskSQL(sql string) string {
	if !s.containsSensitivePattern(sql) {
		return sql
	}

	masked := "'" + s.maskValue + "'"
	if rowSourcePattern.MatchString(sql) {
		return literalPattern.ReplaceAllLiteralString(sql, masked)
	}
	return s.assignments.ReplaceAllString(sql, "${1}"+masked)
}

// MaskDSN hides the password of a "user:password@..." data source name.
func (s *Sanitizer) MaskDSN(dsn string) string {
	return dsnPasswordRegexp.ReplaceAllString(dsn, "${1}:"+s.maskValue+"@")
}

// containsSensitivePattern checks if SQL contains any sensitive field patterns.
func (s *Sanitizer) containsSensitivePattern(sql string) bool {
	for _, pattern := range s.patterns {
		if pattern.MatchString(sql) {
			return true
		}
	}
	return false
}

// Truncate shortens very long statements to keep log lines bounded. The
// cut never splits a UTF-8 sequence.
func (s *Sanitizer) Truncate(sql string) string {
	const maxLen = 1000
	if len(sql) <= maxLen {
		return sql
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(sql[cut]) {
		cut--
	}
	return sql[:cut] + "..."
}
