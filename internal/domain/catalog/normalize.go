package catalog

import (
	"regexp"
	"strings"
)

var (
	parentheticalRegex = regexp.MustCompile(`\s*\([^)]*\)`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
)

// NormalizeGroupName canonicalizes a printed group name for equality checks:
// lower-cased, parenthetical suffixes removed, whitespace runs collapsed,
// ends trimmed. Idempotent and total; never fuzzy beyond these rules.
func NormalizeGroupName(raw string) string {
	name := strings.ToLower(raw)
	name = parentheticalRegex.ReplaceAllString(name, " ")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
