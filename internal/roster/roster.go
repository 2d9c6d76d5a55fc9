// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package roster reads the list of authors to harvest from a CSV file
// with an author_id,name header.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdiddy/scopus-harvest/pkg/types"
)

// ErrEmptyRoster is returned when a roster yields no usable rows.
var ErrEmptyRoster = errors.New("roster has no authors")

const (
	colID   = "author_id"
	colName = "name"
)

// Load reads the roster at path.
func Load(path string) ([]types.Author, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close()

	authors, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return authors, nil
}

// Read parses roster rows from r. Column order is taken from the header;
// extra columns are ignored. Rows with a blank id or name are skipped.
func Read(r io.Reader) ([]types.Author, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyRoster
	}
	if err != nil {
		return nil, fmt.Errorf("reading roster header: %w", err)
	}

	idIdx, nameIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case colID:
			idIdx = i
		case colName:
			nameIdx = i
		}
	}
	if idIdx < 0 || nameIdx < 0 {
		return nil, fmt.Errorf("roster header must contain %s and %s columns, got %v", colID, colName, header)
	}

	var authors []types.Author
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading roster row: %w", err)
		}
		if idIdx >= len(row) || nameIdx >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[idIdx])
		name := strings.TrimSpace(row[nameIdx])
		if id == "" || name == "" {
			continue
		}
		authors = append(authors, types.Author{ID: id, Name: name})
	}

	if len(authors) == 0 {
		return nil, ErrEmptyRoster
	}
	return authors, nil
}
