package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxNameLength bounds user and baby names, in characters
const MaxNameLength = 60

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// NormalizeName trims surrounding whitespace and enforces MaxNameLength.
// An empty name stays empty; callers decide whether a name is required.
func NormalizeName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}
	if strings.ContainsFunc(name, isControl) {
		return "", ValidationError{Field: field, Message: "contains invalid characters"}
	}
	return name, nil
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
