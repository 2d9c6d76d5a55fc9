// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scopus-harvest/internal/store"
	"github.com/pdiddy/scopus-harvest/pkg/types"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List or export records stored by earlier harvests",
	Long: `Records queries the SQLite database written by harvest --db. Filters
narrow the listing by author, year, publication type, or a text match on
title and venue. Use --export to dump the matching records together with
the author table as YAML or JSON.`,
	RunE: runRecords,
}

func init() {
	f := recordsCmd.Flags()
	f.String("db", "data/scopus/scopus.db", "SQLite database written by harvest --db")
	f.String("author", "", "filter by roster author_id")
	f.Int("year", 0, "filter by publication year")
	f.String("subtype", "", "filter by subtype code or description (e.g. ar, Review)")
	f.String("query", "", "case-insensitive text match on title and venue")
	f.Int("limit", 0, "maximum number of records (0: no limit)")
	f.Bool("json", false, "print records as JSON")
	f.String("export", "", "export matching records and authors: yaml or json")

	rootCmd.AddCommand(recordsCmd)
}

func runRecords(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	author, _ := cmd.Flags().GetString("author")
	year, _ := cmd.Flags().GetInt("year")
	subtype, _ := cmd.Flags().GetString("subtype")
	query, _ := cmd.Flags().GetString("query")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")
	export, _ := cmd.Flags().GetString("export")

	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := store.QueryOptions{
		AuthorID: author,
		Year:     year,
		Subtype:  subtype,
		Text:     query,
		Limit:    limit,
	}
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	switch strings.ToLower(export) {
	case "":
	case "yaml", "yml":
		return db.ExportYAML(ctx, w, opts)
	case "json":
		return db.ExportJSON(ctx, w, opts)
	default:
		return fmt.Errorf("unknown export format %q (want yaml or json)", export)
	}

	recs, err := db.Query(ctx, opts)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if recs == nil {
			recs = []types.Record{}
		}
		return enc.Encode(recs)
	}
	printRecords(w, recs)
	return nil
}

func printRecords(w io.Writer, recs []types.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "no records")
		return
	}
	for _, r := range recs {
		year := r.YearValue()
		if year == "" {
			year = "----"
		}
		kind := ""
		if r.Type != nil {
			kind = *r.Type
		}
		fmt.Fprintf(w, "%s  %-18s  %4d  %-16s  %s\n", year, truncate(r.AuthorName, 18), r.CitedBy, truncate(kind, 16), r.Title)
	}
	fmt.Fprintf(w, "\n%d record(s)\n", len(recs))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
