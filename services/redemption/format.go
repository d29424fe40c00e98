package redemption

import (
	"strings"

	"studentslife/pkg/sequence"
)

// NormalizeCode trims the scanned or typed payload and upper-cases it.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidFormat reports whether code is exactly 12 of [A-Z0-9].
func ValidFormat(code string) bool {
	if len(code) != sequence.CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
