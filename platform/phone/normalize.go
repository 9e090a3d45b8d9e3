// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "GB"

// NormalizeE164 formats a phone number to E.164 ("07700..." becomes
// "+447700..."). If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Same reports whether two raw phone strings refer to the same number
// once both are canonicalized. Used for owner validation, where the
// webhook sender and the stored owner phone may differ in formatting.
func Same(a, b string) bool {
	na := NormalizeE164(a)
	nb := NormalizeE164(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}
