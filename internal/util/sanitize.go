package util

import (
	"regexp"
)

var bareWordRegex = regexp.MustCompile(`^\w+$`)

// IsBareWord reports whether s consists only of letters, digits and underscores.
func IsBareWord(s string) bool {
	return bareWordRegex.MatchString(s)
}
