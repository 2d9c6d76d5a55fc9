// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/scopus-harvest/pkg/types"
)

// Export is the document written by ExportYAML and ExportJSON.
type Export struct {
	Authors []AuthorSummary `json:"authors" yaml:"authors"`
	Records []types.Record  `json:"records" yaml:"records"`
}

// ExportYAML writes the matching records and the author table to w as YAML.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	doc, err := s.export(ctx, opts)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the matching records and the author table to w as
// indented JSON.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts QueryOptions) error {
	doc, err := s.export(ctx, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) export(ctx context.Context, opts QueryOptions) (Export, error) {
	opts.Limit = 0
	recs, err := s.Query(ctx, opts)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}
	authors, err := s.Authors(ctx)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}
	if recs == nil {
		recs = []types.Record{}
	}
	if authors == nil {
		authors = []AuthorSummary{}
	}
	return Export{Authors: authors, Records: recs}, nil
}
