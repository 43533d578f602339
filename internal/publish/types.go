// Package publish defines the request and content types for the draft
// publication pipeline.
package publish

import "time"

// Draft is the JSON body accepted by the publish endpoint. Slug is a
// client-side suggestion; the stored slug is always derived through the
// allocator, never trusted verbatim.
type Draft struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags,omitempty"`
	Date      string   `json:"date,omitempty"`
	Updated   string   `json:"updated,omitempty"`
	Canonical string   `json:"canonical,omitempty"`
	Slug      string   `json:"slug,omitempty"`
}

// Frontmatter is the YAML header written at the top of every content file.
type Frontmatter struct {
	Title     string    `yaml:"title"`
	Date      time.Time `yaml:"date"`
	Summary   string    `yaml:"summary"`
	Tags      []string  `yaml:"tags"`
	Updated   string    `yaml:"updated,omitempty"`
	Canonical string    `yaml:"canonical,omitempty"`
}

// PostSummary is one entry of the published content listing.
type PostSummary struct {
	Slug    string    `json:"slug"`
	Title   string    `json:"title"`
	Summary string    `json:"summary"`
	Date    time.Time `json:"date"`
	Tags    []string  `json:"tags"`
}
