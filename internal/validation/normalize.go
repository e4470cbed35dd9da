package validation

import (
	"strings"
	"unicode"
)

func NormalizeName(s string) string {
	return strings.TrimSpace(s)
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NormalizeCompanyCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// DigitsOnly drops every non digit rune.
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, s)
}
