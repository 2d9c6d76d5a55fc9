// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package output writes harvested records to disk: one CSV per author,
// a combined JSON document, and a YAML run report. Files are written to
// a temporary sibling and renamed into place.
package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/scopus-harvest/pkg/types"
)

// csvColumns is the per-author CSV header.
var csvColumns = []string{
	"title", "scopus_url", "doi_url", "cited_by", "cover_date",
	"venue", "volume", "issue", "pages",
}

// CSVWriter writes one CSV file per author into Dir.
type CSVWriter struct {
	Dir string
	// Year, when positive, is appended to each file name.
	Year int
}

// FileName returns the CSV file name for an author: spaces in the name
// become underscores, followed by the optional year and "_articles.csv".
func FileName(name string, year int) string {
	base := strings.ReplaceAll(name, " ", "_")
	if year > 0 {
		base += "_" + strconv.Itoa(year)
	}
	return base + "_articles.csv"
}

// Path returns where the CSV for author is written.
func (c CSVWriter) Path(author types.Author) string {
	return filepath.Join(c.Dir, FileName(author.Name, c.Year))
}

// WriteAuthor writes records for author, replacing any previous file.
// An author with no records still gets a header-only file.
func (c CSVWriter) WriteAuthor(_ context.Context, author types.Author, records []types.Record) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvColumns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Title,
			r.ScopusURL,
			deref(r.DOIURL),
			strconv.Itoa(r.CitedBy),
			r.CoverDate,
			deref(r.Venue),
			deref(r.Volume),
			deref(r.Issue),
			deref(r.Pages),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("encoding CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encoding CSV: %w", err)
	}

	path := c.Path(author)
	if err := writeFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes records as an indented JSON array. A nil slice is
// written as an empty array.
func WriteJSON(path string, records []types.Record) error {
	if records == nil {
		records = []types.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteYAML marshals v as YAML to path.
func WriteYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// writeFile writes data to a temp file next to path and renames it.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".output-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return writeErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return closeErr
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
