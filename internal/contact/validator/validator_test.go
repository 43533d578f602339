package validator

import (
	"errors"
	"strings"
	"testing"

	"siteapi/internal/contact"
)

func validSubmission() *contact.Submission {
	return &contact.Submission{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Message: "I would like to talk about analytical engines.",
	}
}

func fieldError(t *testing.T, err error, field string) string {
	t.Helper()
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	msg, ok := validationErr.Fields[field]
	if !ok {
		t.Fatalf("expected error for field %q, got %v", field, validationErr.Fields)
	}
	return msg
}

func TestValidSubmission(t *testing.T) {
	if err := Validate(validSubmission()); err != nil {
		t.Fatalf("valid submission rejected: %v", err)
	}
}

func TestNameRules(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"plain", "Ada", true},
		{"accented", "Renée O'Connor-Smith, Jr.", true},
		{"cjk", "田中太郎", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"too long", strings.Repeat("a", 201), false},
		{"angle brackets", "<script>alert(1)</script>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			s.Name = tt.value
			err := Validate(s)
			if tt.valid && err != nil {
				t.Errorf("name %q should be valid, got %v", tt.value, err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatalf("name %q should be rejected", tt.value)
				}
				fieldError(t, err, "name")
			}
		})
	}
}

func TestEmailRules(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"plain", "ada@example.com", true},
		{"subdomain", "ada@mail.example.co.uk", true},
		{"empty", "", false},
		{"no at", "ada.example.com", false},
		{"no tld", "ada@example", false},
		{"spaces", "ada lovelace@example.com", false},
		{"too long", strings.Repeat("a", 250) + "@e.io", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			s.Email = tt.value
			err := Validate(s)
			if tt.valid && err != nil {
				t.Errorf("email %q should be valid, got %v", tt.value, err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatalf("email %q should be rejected", tt.value)
				}
				fieldError(t, err, "email")
			}
		})
	}
}

func TestMessageRules(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"minimum length", "1234567890", true},
		{"empty", "", false},
		{"too short", "hi there", false},
		{"too long", strings.Repeat("x", 4001), false},
		{"maximum length", strings.Repeat("x", 4000), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			s.Message = tt.value
			err := Validate(s)
			if tt.valid && err != nil {
				t.Errorf("message of %d chars should be valid, got %v", len(tt.value), err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatalf("message %q should be rejected", tt.value)
				}
				fieldError(t, err, "message")
			}
		})
	}
}

func TestAllErrorsReported(t *testing.T) {
	err := Validate(&contact.Submission{})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"name", "email", "message"} {
		if _, ok := validationErr.Fields[field]; !ok {
			t.Errorf("empty submission should report %q, got %v", field, validationErr.Fields)
		}
	}
}

func TestValidationIsDeterministic(t *testing.T) {
	s := &contact.Submission{Name: "<>", Email: "bad", Message: "short"}
	first := Validate(s)
	second := Validate(s)
	if first.Error() == "" || second.Error() == "" {
		t.Fatal("both runs should produce errors")
	}
	var a, b *ValidationError
	errors.As(first, &a)
	errors.As(second, &b)
	if len(a.Fields) != len(b.Fields) {
		t.Errorf("re-running validation changed the error set: %v vs %v", a.Fields, b.Fields)
	}
	for field, msg := range a.Fields {
		if b.Fields[field] != msg {
			t.Errorf("field %q: %q vs %q", field, msg, b.Fields[field])
		}
	}
}
