package middleware

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

const maxLabelLength = 120

// item ids are UUIDs, or numeric strings in archives written by the browser app
var itemIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

func ValidateItemID(id string) error {
	if id == "" {
		return fmt.Errorf("item ID cannot be empty")
	}
	if !itemIDPattern.MatchString(id) {
		return fmt.Errorf("invalid item ID format")
	}
	return nil
}

// ValidateDate accepts "" or YYYY-MM-DD.
func ValidateDate(date string) error {
	if date == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}
	return nil
}

// SanitizeLabel cleans a user-supplied label and enforces its length limit.
func SanitizeLabel(label string) (string, error) {
	label = SanitizeString(label)
	if utf8.RuneCountInString(label) > maxLabelLength {
		return "", fmt.Errorf("label must be at most %d characters", maxLabelLength)
	}
	return label, nil
}

// SanitizeString removes control characters and surrounding whitespace.
func SanitizeString(input string) string {
	return strings.TrimSpace(StripControl(input))
}

// StripControl removes control characters other than tab and newline and
// leaves everything else, including surrounding spaces, as is.
func StripControl(input string) string {
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
