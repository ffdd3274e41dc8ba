package whatsapp

import (
	"fmt"
	"strings"

	"leadboard/internal/apperr"
	"leadboard/internal/leads"
)

// AddressSuffix is the user-address suffix the rest of the system uses.
const AddressSuffix = "@c.us"

// FormatAddress turns a phone number typed by a user into a chat address.
// Addresses already carrying the suffix pass through; numbers that start with
// the country code and have at least 12 digits are kept; other numbers with at
// least 10 digits get the country code prepended. A target without digits is
// rejected with apperr.ErrInvalidInput.
func FormatAddress(target, countryCode string) (string, error) {
	if user, ok := strings.CutSuffix(target, AddressSuffix); ok {
		if leads.DigitsOnly(user) == "" {
			return "", fmt.Errorf("address %q has no number: %w", target, apperr.ErrInvalidInput)
		}
		return target, nil
	}
	digits := leads.DigitsOnly(target)
	switch {
	case digits == "":
		return "", fmt.Errorf("number %q has no digits: %w", target, apperr.ErrInvalidInput)
	case strings.HasPrefix(digits, countryCode) && len(digits) >= 12:
		return digits + AddressSuffix, nil
	case len(digits) >= 10:
		return countryCode + digits + AddressSuffix, nil
	default:
		return digits + AddressSuffix, nil
	}
}
