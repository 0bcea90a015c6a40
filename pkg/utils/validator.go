package utils

import (
	"fmt"
	"regexp"
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateCurrency checks for a three-letter ISO 4217 currency code
func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return fmt.Errorf("invalid currency code: %s", currency)
	}
	return nil
}

// SanitizeString strips control characters from free-text input
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
