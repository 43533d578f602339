// Package store owns the write path of the content directory. Creation is
// compare-and-create through an exclusive open, so at most one file per slug
// exists even under concurrent publishes; existing files are never
// overwritten.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"siteapi/internal/publish"
	apperrors "siteapi/pkg/errors"
	"siteapi/pkg/logger"
)

// ErrSlugExists reports a slug collision: a file for the slug is already
// present and was left untouched.
var ErrSlugExists = apperrors.ErrSlugExists

// Store persists and lists content files in one directory.
type Store struct {
	dir    string
	ext    string
	logger *slog.Logger
}

// New creates a Store rooted at dir, writing files with the given extension
// (including the dot, e.g. ".mdx").
func New(dir, ext string) *Store {
	return &Store{
		dir:    dir,
		ext:    ext,
		logger: logger.WithComponent("content-store"),
	}
}

// CreateOnce renders the draft and writes {dir}/{slug}{ext}, creating
// intermediate directories as needed. It returns ErrSlugExists when a file
// for the slug is already present. The exclusive open makes the
// check-and-write a single atomic step.
func (s *Store) CreateOnce(slug string, draft *publish.Draft, now time.Time) (string, error) {
	contents, err := render(draft, now)
	if err != nil {
		return "", fmt.Errorf("rendering draft %q: %w", slug, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating content directory: %w", err)
	}

	path := filepath.Join(s.dir, slug+s.ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrSlugExists, slug)
		}
		return "", fmt.Errorf("creating content file: %w", err)
	}

	if _, err := f.Write(contents); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing content file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("syncing content file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing content file: %w", err)
	}
	return path, nil
}

// List returns summaries of every parseable content file, sorted by date
// descending. Files that fail to parse are skipped with a warning.
func (s *Store) List(ctx context.Context) ([]publish.PostSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []publish.PostSummary{}, nil
		}
		return nil, fmt.Errorf("reading content directory: %w", err)
	}

	posts := make([]publish.PostSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), s.ext) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		fm, err := readFrontmatter(path)
		if err != nil {
			s.logger.Warn("skipping unparseable content file", "file", entry.Name(), "error", err)
			continue
		}
		posts = append(posts, publish.PostSummary{
			Slug:    strings.TrimSuffix(entry.Name(), s.ext),
			Title:   fm.Title,
			Summary: fm.Summary,
			Date:    fm.Date,
			Tags:    fm.Tags,
		})
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].Date.After(posts[j].Date)
	})
	return posts, nil
}

// Dir returns the content directory path.
func (s *Store) Dir() string {
	return s.dir
}

// render produces the frontmatter-plus-body document for a draft. The date
// defaults to now when the draft carries none or an unparseable one.
func render(draft *publish.Draft, now time.Time) ([]byte, error) {
	date := now.UTC()
	if draft.Date != "" {
		if parsed, err := parseDate(draft.Date); err == nil {
			date = parsed
		}
	}

	tags := draft.Tags
	if tags == nil {
		tags = []string{}
	}

	fm := publish.Frontmatter{
		Title:     strings.TrimSpace(draft.Title),
		Date:      date,
		Summary:   strings.TrimSpace(draft.Summary),
		Tags:      tags,
		Updated:   strings.TrimSpace(draft.Updated),
		Canonical: strings.TrimSpace(draft.Canonical),
	}

	header, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	buf.WriteString(strings.TrimSpace(draft.Body))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// readFrontmatter extracts the YAML header from a content file.
func readFrontmatter(path string) (*publish.Frontmatter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rest, ok := strings.CutPrefix(string(data), "---\n")
	if !ok {
		return nil, fmt.Errorf("missing frontmatter delimiter")
	}
	header, _, ok := strings.Cut(rest, "\n---")
	if !ok {
		return nil, fmt.Errorf("unterminated frontmatter")
	}
	var fm publish.Frontmatter
	if err := yaml.Unmarshal([]byte(header+"\n"), &fm); err != nil {
		return nil, fmt.Errorf("parsing frontmatter: %w", err)
	}
	return &fm, nil
}

// parseDate accepts RFC3339 timestamps or bare dates.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
