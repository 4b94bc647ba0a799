// Package placeholders substitutes {{key}} and {{key|default}} markers in
// request templates.
package placeholders

import (
	"regexp"
	"strconv"
	"strings"
)

// IDKey is the placeholder filled with the requested identifier.
const IDKey = "id"

var placeholderRegex = regexp.MustCompile(`\{\{\s*([^}|\s]+)\s*(?:\|([^}]*))?\}\}`)

// Apply replaces placeholders with values from record. A missing key falls
// back to its default ({{key|default}}); without a default the marker is kept.
func Apply(template string, record map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		parts := placeholderRegex.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if val, ok := record[parts[1]]; ok {
			return val
		}
		if len(parts) > 2 && strings.Contains(match, "|") {
			return parts[2]
		}
		return match
	})
}

// ApplyID fills the {{id}} placeholder.
func ApplyID(template string, id int) string {
	return Apply(template, map[string]string{IDKey: strconv.Itoa(id)})
}

// References reports whether template contains a placeholder for key.
func References(template, key string) bool {
	for _, m := range placeholderRegex.FindAllStringSubmatch(template, -1) {
		if m[1] == key {
			return true
		}
	}
	return false
}
