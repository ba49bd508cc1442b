// Package strings provides string utilities for generated identifiers.
package strings

import (
	"strings"
	"unicode"
)

func ToLowerCamel(s string) string {
	i := 0
	for i < len(s) && unicode.IsUpper(rune(s[i])) {
		i++
	}

	return strings.ToLower(s[:i]) + s[i:]
}

func ToUpperCamel(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

// Mangle flattens a qualified type name into an identifier fragment:
// "*pkg.Conn" becomes "PkgConn". Used for factory and field names derived
// from keys.
func Mangle(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	upperNext := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if upperNext {
				r = unicode.ToUpper(r)
				upperNext = false
			}
			b.WriteRune(r)
		default:
			// Separators ('.', '/', '*', '[', ']') start a new word.
			upperNext = true
		}
	}

	return b.String()
}
