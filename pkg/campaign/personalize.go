package campaign

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Personalize substitutes {{placeholder}} occurrences in template with
// values from fields. Placeholders without a matching field are left
// verbatim so a misconfigured template never blocks an action.
func Personalize(template string, fields map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := fields[name]
		if !ok {
			return match
		}

		return strings.TrimSpace(value)
	})
}
