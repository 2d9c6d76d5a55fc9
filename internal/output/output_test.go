// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/scopus-harvest/pkg/types"
)

func strp(s string) *string { return &s }

func TestFileName(t *testing.T) {
	assert.Equal(t, "Ada_Lovelace_articles.csv", FileName("Ada Lovelace", 0))
	assert.Equal(t, "Ada_Lovelace_2024_articles.csv", FileName("Ada Lovelace", 2024))
}

func TestCSVWriter_WriteAuthor(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scopus")
	w := CSVWriter{Dir: dir, Year: 2023}
	author := types.Author{ID: "1", Name: "Ada Lovelace"}
	recs := []types.Record{
		{
			Title:     "Notes, on engines",
			ScopusURL: "https://www.scopus.com/record/display.uri?eid=e1&origin=recordpage",
			DOIURL:    strp("https://doi.org/10.1/x"),
			CitedBy:   12,
			CoverDate: "2023-05-01",
			Venue:     strp("Journal"),
			Volume:    strp("4"),
		},
		{Title: "Bare", ScopusURL: "u2"},
	}

	require.NoError(t, w.WriteAuthor(context.Background(), author, recs))

	f, err := os.Open(filepath.Join(dir, "Ada_Lovelace_2023_articles.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, csvColumns, rows[0])
	assert.Equal(t, []string{
		"Notes, on engines",
		"https://www.scopus.com/record/display.uri?eid=e1&origin=recordpage",
		"https://doi.org/10.1/x", "12", "2023-05-01", "Journal", "4", "", "",
	}, rows[1])
	assert.Equal(t, []string{"Bare", "u2", "", "0", "", "", "", "", ""}, rows[2])
}

func TestCSVWriter_EmptyAuthorGetsHeader(t *testing.T) {
	dir := t.TempDir()
	w := CSVWriter{Dir: dir}
	require.NoError(t, w.WriteAuthor(context.Background(), types.Author{ID: "2", Name: "No Papers"}, nil))

	data, err := os.ReadFile(filepath.Join(dir, "No_Papers_articles.csv"))
	require.NoError(t, err)
	assert.Equal(t, "title,scopus_url,doi_url,cited_by,cover_date,venue,volume,issue,pages\n", string(data))
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scopus.json")
	recs := []types.Record{{
		Title:      "Über <Graphs>",
		EID:        "e1",
		Authors:    []string{"Smith J."},
		AuthorID:   "1",
		AuthorName: "Ada",
	}}
	require.NoError(t, WriteJSON(path, recs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Über <Graphs>", "no ASCII or HTML escaping")
	assert.Contains(t, string(data), "\n  {", "indented by two spaces")

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Nil(t, got[0]["doi"])
	assert.Equal(t, "Ada", got[0]["author_name"])
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scopus.json")
	require.NoError(t, WriteJSON(path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestWriteYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, WriteYAML(path, map[string]int{"succeeded": 2}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, 2, got["succeeded"])
}
