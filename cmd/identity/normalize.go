package identity

import "strings"

// NormalizeEmail trims surrounding whitespace only.
// Matching stays case-sensitive: "A@x.com" and "a@x.com" are distinct accounts.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(s)
}
