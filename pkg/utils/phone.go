package utils

import (
	"errors"
	"strings"
)

// ValidatePhoneNumber checks that a number is in E.164 form: a leading "+"
// followed by 8 to 15 digits, no separators.
func ValidatePhoneNumber(number string) error {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return errors.New("phone number is required")
	}
	if !strings.HasPrefix(trimmed, "+") {
		return errors.New("phone number must start with '+' and a country code")
	}
	digits := trimmed[1:]
	if len(digits) < 8 || len(digits) > 15 {
		return errors.New("phone number must have between 8 and 15 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return errors.New("phone number must contain only digits after '+'")
		}
	}
	return nil
}

// MaskPhoneNumber hides all but the last four digits, for logs.
func MaskPhoneNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
