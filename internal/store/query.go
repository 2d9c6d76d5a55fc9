// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/scopus-harvest/pkg/types"
)

// QueryOptions filters stored records. Zero values disable a filter.
type QueryOptions struct {
	// AuthorID restricts results to one roster author.
	AuthorID string

	// Year restricts results to one publication year.
	Year int

	// Subtype matches the subtype code or description, ignoring case.
	Subtype string

	// Text is a case-insensitive substring match on title and venue.
	Text string

	// Limit caps the result count. Zero means no limit.
	Limit int
}

// Query returns matching records ordered by author name and then by
// each author's harvest order.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]types.Record, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT r.eid, r.title, r.scopus_url, r.doi, r.doi_url, r.cited_by,
			COALESCE(r.cover_date, ''), r.year, r.month, r.day, r.venue, r.type,
			r.subtype, r.volume, r.issue, r.pages, r.first_author, r.authors,
			r.author_id, a.name
		FROM records r
		JOIN authors a ON a.author_id = r.author_id
		WHERE 1=1`)

	if opts.AuthorID != "" {
		qb.WriteString(` AND r.author_id = ?`)
		args = append(args, opts.AuthorID)
	}
	if opts.Year > 0 {
		qb.WriteString(` AND r.year = ?`)
		args = append(args, fmt.Sprintf("%d", opts.Year))
	}
	if opts.Subtype != "" {
		qb.WriteString(` AND (lower(r.subtype) = lower(?) OR lower(r.type) = lower(?))`)
		args = append(args, opts.Subtype, opts.Subtype)
	}
	if opts.Text != "" {
		like := "%" + strings.ToLower(opts.Text) + "%"
		qb.WriteString(` AND (lower(r.title) LIKE ? OR lower(COALESCE(r.venue, '')) LIKE ?)`)
		args = append(args, like, like)
	}

	qb.WriteString(` ORDER BY a.name, r.author_id, r.position`)
	if opts.Limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		var (
			r                                       types.Record
			doi, doiURL, year, month, day, venue    sql.NullString
			kind, subtype, volume, issue, pages, fa sql.NullString
			authorsJSON                             sql.NullString
		)
		if err := rows.Scan(
			&r.EID, &r.Title, &r.ScopusURL, &doi, &doiURL, &r.CitedBy,
			&r.CoverDate, &year, &month, &day, &venue, &kind,
			&subtype, &volume, &issue, &pages, &fa, &authorsJSON,
			&r.AuthorID, &r.AuthorName,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		r.DOI, r.DOIURL = fromNull(doi), fromNull(doiURL)
		r.Year, r.Month, r.Day = fromNull(year), fromNull(month), fromNull(day)
		r.Venue, r.Type, r.Subtype = fromNull(venue), fromNull(kind), fromNull(subtype)
		r.Volume, r.Issue, r.Pages = fromNull(volume), fromNull(issue), fromNull(pages)
		r.FirstAuthor = fromNull(fa)
		r.Authors = []string{}
		if authorsJSON.Valid && authorsJSON.String != "" {
			if err := json.Unmarshal([]byte(authorsJSON.String), &r.Authors); err != nil {
				return nil, fmt.Errorf("decoding authors of %s: %w", r.EID, err)
			}
			if r.Authors == nil {
				r.Authors = []string{}
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
