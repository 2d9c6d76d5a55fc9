// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists harvested records in SQLite so runs can be
// queried and exported later. Each harvest replaces the stored records
// of the authors it completed and leaves the others untouched.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/scopus-harvest/pkg/types"
)

// Store manages the record database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and creates the schema if
// it does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS authors (
			author_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			record_count INTEGER NOT NULL DEFAULT 0,
			harvested_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			author_id TEXT NOT NULL REFERENCES authors(author_id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			eid TEXT NOT NULL,
			title TEXT NOT NULL,
			scopus_url TEXT NOT NULL,
			doi TEXT,
			doi_url TEXT,
			cited_by INTEGER NOT NULL DEFAULT 0,
			cover_date TEXT,
			year TEXT,
			month TEXT,
			day TEXT,
			venue TEXT,
			type TEXT,
			subtype TEXT,
			volume TEXT,
			issue TEXT,
			pages TEXT,
			first_author TEXT,
			authors TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_author_id ON records(author_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_year ON records(year)`,
		`CREATE INDEX IF NOT EXISTS idx_records_eid ON records(eid)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// WriteAuthor replaces the stored records of author with records, in
// their given order, inside one transaction.
func (s *Store) WriteAuthor(ctx context.Context, author types.Author, records []types.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE author_id = ?`, author.ID); err != nil {
		return fmt.Errorf("deleting old records: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO authors (author_id, name, record_count, harvested_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(author_id) DO UPDATE SET
			name=excluded.name, record_count=excluded.record_count,
			harvested_at=excluded.harvested_at`,
		author.ID, author.Name, len(records), s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting author: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (author_id, position, eid, title, scopus_url, doi, doi_url,
			cited_by, cover_date, year, month, day, venue, type, subtype, volume, issue,
			pages, first_author, authors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		authorsJSON, err := json.Marshal(r.Authors)
		if err != nil {
			return fmt.Errorf("encoding authors of %s: %w", r.EID, err)
		}
		_, err = stmt.ExecContext(ctx,
			author.ID, i, r.EID, r.Title, r.ScopusURL, nullable(r.DOI), nullable(r.DOIURL),
			r.CitedBy, r.CoverDate, nullable(r.Year), nullable(r.Month), nullable(r.Day),
			nullable(r.Venue), nullable(r.Type), nullable(r.Subtype), nullable(r.Volume),
			nullable(r.Issue), nullable(r.Pages), nullable(r.FirstAuthor), string(authorsJSON),
		)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", r.EID, err)
		}
	}

	return tx.Commit()
}

// AuthorSummary is one row of the authors table.
type AuthorSummary struct {
	ID          string `json:"author_id" yaml:"author_id"`
	Name        string `json:"name" yaml:"name"`
	RecordCount int    `json:"record_count" yaml:"record_count"`
	HarvestedAt string `json:"harvested_at" yaml:"harvested_at"`
}

// Authors lists every stored author ordered by name.
func (s *Store) Authors(ctx context.Context) ([]AuthorSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT author_id, name, record_count, COALESCE(harvested_at, '') FROM authors ORDER BY name, author_id`)
	if err != nil {
		return nil, fmt.Errorf("querying authors: %w", err)
	}
	defer rows.Close()

	var out []AuthorSummary
	for rows.Next() {
		var a AuthorSummary
		if err := rows.Scan(&a.ID, &a.Name, &a.RecordCount, &a.HarvestedAt); err != nil {
			return nil, fmt.Errorf("scanning author: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
