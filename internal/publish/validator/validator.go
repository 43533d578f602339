// Package validator enforces the constraints on publish drafts. Like the
// contact validator it is pure and returns the complete error set.
package validator

import (
	"fmt"
	"strings"

	"siteapi/internal/publish"
	"siteapi/internal/publish/slug"
)

const (
	minSummaryLength = 20
	maxSummaryLength = 300
	minBodyLength    = 50
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

// Validate checks a draft against the publish rules. A missing slug is
// never an error; it will be derived from the title. A client-supplied slug
// must already satisfy the canonical grammar.
func Validate(d *publish.Draft) error {
	errs := make(map[string]string)

	if strings.TrimSpace(d.Title) == "" {
		errs["title"] = "title is required"
	}

	summary := strings.TrimSpace(d.Summary)
	if n := len(summary); n < minSummaryLength || n > maxSummaryLength {
		errs["summary"] = fmt.Sprintf("summary must be between %d and %d characters", minSummaryLength, maxSummaryLength)
	}

	if len(strings.TrimSpace(d.Body)) < minBodyLength {
		errs["body"] = fmt.Sprintf("body must be at least %d characters", minBodyLength)
	}

	if s := strings.TrimSpace(d.Slug); s != "" && !slug.Valid(s) {
		errs["slug"] = "slug may only include lowercase letters, numbers, and hyphens"
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
