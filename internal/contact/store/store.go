// Package store archives accepted contact submissions in PostgreSQL. The
// archive is optional by deployment; when it is configured, a failed insert
// fails the request, since the caller was promised durability.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"siteapi/internal/contact"
	"siteapi/pkg/logger"
	"siteapi/pkg/postgres"
)

// Store persists contact submissions.
//
// It requires a `contact_submissions` table:
//
//	CREATE TABLE contact_submissions (
//	    id          BIGSERIAL PRIMARY KEY,
//	    name        TEXT NOT NULL,
//	    email       TEXT NOT NULL,
//	    message     TEXT NOT NULL,
//	    client_ip   TEXT,
//	    received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Store backed by PostgreSQL.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: logger.WithComponent("contact-store"),
	}
}

// Save inserts one accepted submission and returns its assigned ID.
func (s *Store) Save(ctx context.Context, sub *contact.Submission, clientIP string, receivedAt time.Time) (string, error) {
	var id string
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO contact_submissions (name, email, message, client_ip, received_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		sub.Name, sub.Email, sub.Message, nullableString(clientIP), receivedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("inserting contact submission: %w", err)
	}
	s.logger.Info("submission archived", "id", id)
	return id, nil
}

// nullableString converts a Go string to a sql.NullString, treating the
// empty string as NULL.
func nullableString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
