// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the scopus-harvest pipeline:
// the roster author, the normalized publication record, and run configuration.
package types

// Author is one roster row: a Scopus author identifier and a display name.
type Author struct {
	ID   string `json:"author_id" yaml:"author_id"`
	Name string `json:"name" yaml:"name"`
}

// Record is one normalized publication harvested for an author.
// Optional upstream fields are pointers so they serialize as null when absent.
type Record struct {
	Title       string   `json:"title" yaml:"title"`
	EID         string   `json:"eid" yaml:"eid"`
	ScopusURL   string   `json:"scopus_url" yaml:"scopus_url"`
	DOI         *string  `json:"doi" yaml:"doi"`
	DOIURL      *string  `json:"doi_url" yaml:"doi_url"`
	CitedBy     int      `json:"cited_by" yaml:"cited_by"`
	CoverDate   string   `json:"cover_date" yaml:"cover_date"`
	Year        *string  `json:"year" yaml:"year"`
	Month       *string  `json:"month" yaml:"month"`
	Day         *string  `json:"day" yaml:"day"`
	Venue       *string  `json:"venue" yaml:"venue"`
	Type        *string  `json:"type" yaml:"type"`
	Subtype     *string  `json:"subtype" yaml:"subtype"`
	Volume      *string  `json:"volume" yaml:"volume"`
	Issue       *string  `json:"issue" yaml:"issue"`
	Pages       *string  `json:"pages" yaml:"pages"`
	FirstAuthor *string  `json:"first_author" yaml:"first_author"`
	Authors     []string `json:"authors" yaml:"authors"`
	AuthorID    string   `json:"author_id" yaml:"author_id"`
	AuthorName  string   `json:"author_name" yaml:"author_name"`
}

// YearValue returns the publication year, or "" when unknown.
func (r Record) YearValue() string { return deref(r.Year) }

// MonthValue returns the zero-padded month, or "" when unknown.
func (r Record) MonthValue() string { return deref(r.Month) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
