// Package validator enforces the structural constraints on contact
// submissions. Validation is pure and total: it performs no I/O and returns
// the complete error set rather than failing fast, so a caller can surface
// every problem in one response.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"siteapi/internal/contact"
)

const (
	maxNameLength    = 200
	maxEmailLength   = 254
	minMessageLength = 10
	maxMessageLength = 4000
)

var (
	// namePattern allows Unicode letters, marks, and digits plus the
	// punctuation common in personal names.
	namePattern = regexp.MustCompile(`^[\p{L}\p{M}\p{N} .,'-]+$`)
	// emailPattern is a minimal local@domain.tld shape, deliberately far
	// short of RFC 5322.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// Validate checks a submission against the contact rules and returns a
// ValidationError listing every violated field, or nil when valid.
func Validate(s *contact.Submission) error {
	errs := make(map[string]string)

	name := strings.TrimSpace(s.Name)
	switch {
	case name == "":
		errs["name"] = "name is required"
	case len(name) > maxNameLength:
		errs["name"] = fmt.Sprintf("name must be at most %d characters", maxNameLength)
	case !namePattern.MatchString(name):
		errs["name"] = "name contains unsupported characters"
	}

	email := strings.TrimSpace(s.Email)
	switch {
	case email == "":
		errs["email"] = "email is required"
	case len(email) > maxEmailLength:
		errs["email"] = fmt.Sprintf("email must be at most %d characters", maxEmailLength)
	case !emailPattern.MatchString(email):
		errs["email"] = "email must look like name@example.com"
	}

	message := strings.TrimSpace(s.Message)
	switch {
	case message == "":
		errs["message"] = "message is required"
	case len(message) < minMessageLength:
		errs["message"] = fmt.Sprintf("message must be at least %d characters", minMessageLength)
	case len(message) > maxMessageLength:
		errs["message"] = fmt.Sprintf("message must be at most %d characters", maxMessageLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
