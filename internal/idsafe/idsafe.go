// Package idsafe sanitizes user-supplied identifiers (session ids, plan
// ids) before they are used to build filesystem paths.
package idsafe

import "strings"

// Sanitize strips every character that is not alphanumeric or one of
// "-_.", returning fallback if the result is empty.
func Sanitize(id, fallback string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}
