// internal/phone/phone.go

// Package phone canonicalizes and validates Rwandan mobile numbers before
// any SMS or mobile-money dispatch is attempted.
package phone

import (
	"fmt"
	"regexp"
	"strings"

	"tapcash-pos/internal/util"
)

const countryCode = "250"

var (
	nonDigits = regexp.MustCompile(`\D`)
	// MTN (078x/079x) and Airtel (072x/073x) mobile ranges.
	mobilePattern = regexp.MustCompile(`^2507[2389][0-9]{7}$`)
)

// Canonicalize normalizes a raw phone number: non-digits are stripped, a
// national trunk prefix "0" is replaced with the country code, numbers
// already bearing the country code are left as-is, and short local
// numbers are prefixed with the country code.
func Canonicalize(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	switch {
	case strings.HasPrefix(digits, countryCode):
		return digits
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	case len(digits) <= 9:
		return countryCode + digits
	}
	return digits
}

// Validate canonicalizes raw and checks it against the supported mobile
// carrier ranges. It returns the canonical form or ErrInvalidPhone.
func Validate(raw string) (string, error) {
	canonical := Canonicalize(raw)
	if !mobilePattern.MatchString(canonical) {
		return "", fmt.Errorf("%w: %q", util.ErrInvalidPhone, raw)
	}
	return canonical, nil
}
