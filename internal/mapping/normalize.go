// Package mapping reconciles the headers of an upload with the logical sales
// schema: header normalization, the optional-column alias catalog, and
// resolution of the final logical->actual mapping.
package mapping

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes a header for alias comparison. Two headers match
// when their normalized keys are equal.
func Normalize(header string) string {
	header = strings.ToLower(strings.TrimSpace(header))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			return -1
		}
		return r
	}, header)
}
