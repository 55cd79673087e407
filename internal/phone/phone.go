// Package phone normalizes player phone numbers to E.164.
package phone

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is assumed for numbers written without a country code.
const DefaultRegion = "US"

// IsPhoneNumber reports whether s looks like a phone number rather than an
// email address or free text.
func IsPhoneNumber(s string) bool {
	return Normalize(s) != ""
}

// Normalize returns s in E.164 form, or "" when it is not a possible number.
// Only digits, spaces and the usual separators are accepted.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	digits := 0
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return ""
		}
	}
	if digits < 10 || digits > 15 {
		return ""
	}

	num, err := phonenumbers.Parse(s, DefaultRegion)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
