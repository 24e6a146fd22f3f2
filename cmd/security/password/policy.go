package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password policy. Length is counted in runes, not bytes.
func (c Config) Validate(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak && looksVeryWeak(password) {
		return ErrWeakPassword
	}
	return nil
}

var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"passw0rd":    {},
	"qwerty":      {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"letmein":     {},
	"iloveyou":    {},
	"admin123":    {},
	"welcome1":    {},
}

// looksVeryWeak catches only the most trivial choices. It is not an entropy estimator.
func looksVeryWeak(pw string) bool {
	s := strings.ToLower(strings.TrimSpace(pw))
	if s == "" {
		return true
	}
	if _, ok := commonPasswords[s]; ok {
		return true
	}

	runes := []rune(s)
	digits := true
	same, up, down := true, true, true
	for i, r := range runes {
		if !unicode.IsDigit(r) {
			digits = false
		}
		if i == 0 {
			continue
		}
		prev := runes[i-1]
		same = same && r == prev
		up = up && r == prev+1
		down = down && r == prev-1
	}

	// PIN-like: short all-digit strings.
	if digits && len(runes) < 12 {
		return true
	}
	// "aaaaaaaa", "abcdefgh", "87654321".
	return same || up || down
}
