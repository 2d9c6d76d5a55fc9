// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scopus-harvest/internal/harvest"
	"github.com/pdiddy/scopus-harvest/internal/httputil"
	"github.com/pdiddy/scopus-harvest/internal/keys"
	"github.com/pdiddy/scopus-harvest/internal/logging"
	"github.com/pdiddy/scopus-harvest/internal/metrics"
	"github.com/pdiddy/scopus-harvest/internal/output"
	"github.com/pdiddy/scopus-harvest/internal/roster"
	"github.com/pdiddy/scopus-harvest/internal/scopus"
	"github.com/pdiddy/scopus-harvest/internal/store"
	"github.com/pdiddy/scopus-harvest/pkg/types"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Fetch publications for every author in the roster",
	Long: `Harvest reads the author roster, searches Scopus for each author's
publications, keeps the requested publication types, and writes one CSV per
author plus a combined JSON file. A failure for one author is reported and
the run continues with the next; the command exits non-zero if any author
failed. Partial output is still written.`,
	RunE: runHarvest,
}

// harvestFlags maps each flag to its settings key.
var harvestFlags = map[string]string{
	"authors-file":    "authors_file",
	"out":             "output_dir",
	"combined":        "combined_json",
	"details":         "details",
	"year":            "year",
	"types":           "types",
	"db":              "db_path",
	"page-size":       "page_size",
	"search-attempts": "search_attempts",
	"detail-attempts": "detail_attempts",
	"backoff-base":    "backoff_base",
	"backoff-cap":     "backoff_cap",
	"page-delay":      "page_delay",
	"author-delay":    "author_delay",
	"timeout":         "timeout",
	"max-key-passes":  "max_key_passes",
	"rps":             "requests_per_second",
	"user-agent":      "user_agent",
	"base-url":        "base_url",
}

func init() {
	f := harvestCmd.Flags()
	f.String("authors-file", types.DefaultAuthorsFile, "roster CSV with author_id,name columns")
	f.String("out", types.DefaultOutputDir, "directory for per-author CSV files")
	f.String("combined", types.DefaultCombinedJSON, "path of the combined JSON file")
	f.Bool("details", false, "look up the full author list of every record")
	f.Int("year", 0, "only harvest publications from this year")
	f.String("types", "Article", "comma-separated publication types to keep (e.g. Article,Review); * keeps all")
	f.String("db", "", "SQLite database that also receives every record")
	f.Int("page-size", types.DefaultPageSize, "entries requested per search page")
	f.Int("search-attempts", types.DefaultSearchAttempts, "attempts per search page before rotating keys")
	f.Int("detail-attempts", types.DefaultDetailAttempts, "attempts per author-list lookup")
	f.Duration("backoff-base", types.DefaultBackoffBase, "initial retry backoff, doubled per retry")
	f.Duration("backoff-cap", types.DefaultBackoffCap, "maximum retry backoff")
	f.Duration("page-delay", types.DefaultPageDelay, "pause between search pages")
	f.Duration("author-delay", types.DefaultAuthorDelay, "pause between authors")
	f.Duration("timeout", types.DefaultTimeout, "HTTP request timeout")
	f.Int("max-key-passes", 0, "full attempt budgets spent on one page, rotating keys between them (default: number of keys)")
	f.Float64("rps", 0, "maximum requests per second across all calls (0: unlimited)")
	f.String("user-agent", types.DefaultUserAgent, "User-Agent header")
	f.String("base-url", "", "Scopus API root (default: "+scopus.DefaultBaseURL+")")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the run (e.g. :9090)")
	f.String("metrics-file", "", "write Prometheus metrics in text format to this file when the run ends")
	f.String("report", "", "write a YAML run report to this file")

	for flag, key := range harvestFlags {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(harvestCmd)
}

// runReport is the document written by --report.
type runReport struct {
	StartedAt time.Time           `yaml:"started_at"`
	Duration  string              `yaml:"duration"`
	Config    types.HarvestConfig `yaml:"config"`
	Records   int                 `yaml:"records"`
	Result    harvest.Result      `yaml:"result"`
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return err
	}
	authors, err := roster.Load(cfg.AuthorsFile)
	if err != nil {
		return &harvest.ConfigError{Err: err}
	}
	rot, err := keys.New(cfg.APIKeys)
	if err != nil {
		return &harvest.ConfigError{Err: err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	reportPath, _ := cmd.Flags().GetString("report")
	if metricsAddr != "" {
		if _, _, err := metrics.Serve(ctx, metricsAddr, logging.Component(logger, "metrics")); err != nil {
			return err
		}
	}

	logger.Info().
		Int("authors", len(authors)).
		Int("keys", rot.Len()).
		Strs("types", cfg.Kinds).
		Int("year", cfg.Year).
		Bool("details", cfg.Details).
		Msg("starting harvest")

	exec := httputil.NewExecutor(&http.Client{Timeout: cfg.Timeout}, httputil.Config{
		BackoffBase:       cfg.BackoffBase,
		BackoffCap:        cfg.BackoffCap,
		RequestsPerSecond: cfg.RequestsPerSecond,
		UserAgent:         cfg.UserAgent,
	}, logging.Component(logger, "http"))

	client := scopus.New(exec, rot, scopus.Config{
		BaseURL:        cfg.BaseURL,
		PageSize:       cfg.PageSize,
		SearchAttempts: cfg.SearchAttempts,
		DetailAttempts: cfg.DetailAttempts,
		MaxKeyPasses:   cfg.MaxKeyPasses,
		PageDelay:      cfg.PageDelay,
	}, logging.Component(logger, "scopus"))

	sinks := []harvest.Sink{output.CSVWriter{Dir: cfg.OutputDir, Year: cfg.Year}}
	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return &harvest.ConfigError{Err: err}
		}
		defer db.Close()
		sinks = append(sinks, db)
	}

	h := harvest.New(harvest.ClientSource(client), harvest.Options{
		Year:        cfg.Year,
		Kinds:       cfg.Kinds,
		Details:     cfg.Details,
		AuthorDelay: cfg.AuthorDelay,
	}, logging.Component(logger, "harvest"), sinks...)

	started := time.Now()
	res, runErr := h.Run(ctx, authors, cmd.OutOrStdout())

	if err := output.WriteJSON(cfg.CombinedJSON, res.Records); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Combined JSON: %s (%d record(s))\n", cfg.CombinedJSON, len(res.Records))

	if reportPath != "" {
		rep := runReport{
			StartedAt: started.UTC(),
			Duration:  time.Since(started).Round(time.Millisecond).String(),
			Config:    cfg,
			Records:   len(res.Records),
			Result:    res,
		}
		if err := output.WriteYAML(reportPath, rep); err != nil {
			logger.Warn().Err(err).Str("path", reportPath).Msg("writing run report failed")
		}
	}
	if metricsFile != "" {
		if err := metrics.WriteFile(metricsFile, prometheus.DefaultGatherer); err != nil {
			logger.Warn().Err(err).Str("path", metricsFile).Msg("writing metrics file failed")
		}
	}

	if runErr != nil {
		return fmt.Errorf("harvest interrupted: %w", runErr)
	}
	if res.HasFailures() {
		return fmt.Errorf("%d of %d author(s) failed", res.Failed, res.Total())
	}
	return nil
}
