// Package identity canonicalizes raw user identifiers into the stable
// subject fragment every store key is built from.
package identity

import (
	"fmt"
	"strings"

	"github.com/salonflow/salonflow-sessions/internal/model"
)

// SyntheticPrefix marks non-phone identities (demo and test sessions).
// Inputs carrying it bypass numeric normalization and are used verbatim.
const SyntheticPrefix = "sf-"

// E.164 length window.
const (
	minDigits = 7
	maxDigits = 15
)

// Normalize canonicalizes a raw phone-like identifier.
//
// Rules: non-digit characters are stripped; an 11-digit number with the
// Russian trunk prefix 8 is rewritten to country code 7; a bare
// 10-digit mobile number (leading 9) gains the country code; anything
// outside the 7–15 digit window is rejected with ErrInvalidIdentity,
// never truncated. Pure function, safe for concurrent use.
func Normalize(raw string) (string, error) {
	if strings.HasPrefix(raw, SyntheticPrefix) {
		return raw, nil
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) == 11 && digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	if len(digits) == 10 && digits[0] == '9' {
		digits = "7" + digits
	}

	if len(digits) < minDigits || len(digits) > maxDigits {
		return "", fmt.Errorf("normalize %q: %d digits: %w", raw, len(digits), model.ErrInvalidIdentity)
	}
	return digits, nil
}

// IsSynthetic reports whether subject is a synthetic (non-phone)
// identity.
func IsSynthetic(subject string) bool {
	return strings.HasPrefix(subject, SyntheticPrefix)
}
