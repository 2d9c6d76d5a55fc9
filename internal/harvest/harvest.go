// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest drives a roster through the Scopus client: one search
// per author, type filtering, optional author enrichment, normalization
// and hand-off to the configured sinks. A failure for one author is
// recorded and the run moves on to the next.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scopus-harvest/internal/httputil"
	"github.com/pdiddy/scopus-harvest/internal/metrics"
	"github.com/pdiddy/scopus-harvest/internal/scopus"
	"github.com/pdiddy/scopus-harvest/pkg/types"
)

// ConfigError reports a problem found before any network activity: no
// credentials, an empty or unreadable roster, or an invalid knob.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// Pages iterates search hits one entry at a time. *scopus.Pager
// satisfies it.
type Pages interface {
	Next(ctx context.Context) bool
	Entry() scopus.Entry
	Err() error
}

// Source is the Scopus surface the harvester needs. Wrap a
// *scopus.Client with ClientSource.
type Source interface {
	Search(query string) Pages
	FetchAuthors(ctx context.Context, eid string) scopus.DetailRecord
}

type clientSource struct {
	c *scopus.Client
}

// ClientSource adapts a Scopus client to Source.
func ClientSource(c *scopus.Client) Source { return clientSource{c: c} }

func (s clientSource) Search(query string) Pages { return s.c.Search(query) }

func (s clientSource) FetchAuthors(ctx context.Context, eid string) scopus.DetailRecord {
	return s.c.FetchAuthors(ctx, eid)
}

// Sink receives the sorted records of each author that completed.
type Sink interface {
	WriteAuthor(ctx context.Context, author types.Author, records []types.Record) error
}

// Options selects what is harvested.
type Options struct {
	// Year restricts results to one publication year; zero means any.
	Year int
	// Kinds lists accepted publication kinds; empty accepts all.
	Kinds []string
	// Details enables the per-record author lookup.
	Details bool
	// AuthorDelay is the pause between consecutive authors.
	AuthorDelay time.Duration
}

// AuthorFailure records an author whose harvest was aborted.
type AuthorFailure struct {
	Author types.Author `json:"author" yaml:"author"`
	Error  string       `json:"error" yaml:"error"`
}

// Result holds the outcome of a run.
type Result struct {
	Succeeded int             `json:"succeeded" yaml:"succeeded"`
	Failed    int             `json:"failed" yaml:"failed"`
	Degraded  int             `json:"degraded_enrichments" yaml:"degraded_enrichments"`
	Failures  []AuthorFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Records   []types.Record  `json:"-" yaml:"-"`
}

// Total returns the number of authors processed.
func (r Result) Total() int { return r.Succeeded + r.Failed }

// HasFailures reports whether any author failed.
func (r Result) HasFailures() bool { return r.Failed > 0 }

// Harvester runs rosters against a Source.
type Harvester struct {
	src    Source
	opts   Options
	sinks  []Sink
	logger zerolog.Logger

	// sleep implements the inter-author delay. Tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a harvester that hands every completed author to sinks in order.
func New(src Source, opts Options, logger zerolog.Logger, sinks ...Sink) *Harvester {
	return &Harvester{
		src:    src,
		opts:   opts,
		sinks:  sinks,
		logger: logger,
		sleep:  httputil.SleepContext,
	}
}

// Run processes authors in roster order, printing per-author status and
// a closing summary to w. It continues after individual failures and
// pauses between consecutive authors. The only error it returns is the
// context's, when the run is interrupted; the partial Result is still
// returned and summarized in that case.
func (h *Harvester) Run(ctx context.Context, authors []types.Author, w io.Writer) (Result, error) {
	var res Result
	for i, a := range authors {
		if i > 0 {
			if err := h.sleep(ctx, h.opts.AuthorDelay); err != nil {
				return res, h.interrupted(w, res, len(authors), err)
			}
		}

		log := h.logger.With().Str("author_id", a.ID).Str("author", a.Name).Logger()
		log.Info().Int("n", i+1).Int("of", len(authors)).Msg("harvesting author")

		start := time.Now()
		recs, degraded, err := h.Author(ctx, a)
		metrics.AuthorDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			err = h.emit(ctx, a, recs)
		}
		if err != nil {
			if ctx.Err() != nil {
				return res, h.interrupted(w, res, len(authors), ctx.Err())
			}
			log.Error().Err(err).Msg("author failed")
			fmt.Fprintf(w, "failed:  %s (%s): %v\n", a.Name, a.ID, err)
			metrics.Authors.WithLabelValues("failed").Inc()
			res.Failed++
			res.Failures = append(res.Failures, AuthorFailure{Author: a, Error: err.Error()})
			continue
		}

		fmt.Fprintf(w, "saved:   %s (%s): %d record(s)\n", a.Name, a.ID, len(recs))
		metrics.Authors.WithLabelValues("ok").Inc()
		metrics.Records.Add(float64(len(recs)))
		res.Succeeded++
		res.Degraded += degraded
		res.Records = append(res.Records, recs...)
	}

	printSummary(w, res)
	return res, nil
}

func (h *Harvester) interrupted(w io.Writer, res Result, total int, err error) error {
	h.logger.Warn().Err(err).Int("processed", res.Total()).Int("of", total).Msg("harvest interrupted")
	fmt.Fprintf(w, "\ninterrupted after %d of %d author(s)\n", res.Total(), total)
	printSummary(w, res)
	return err
}

func printSummary(w io.Writer, res Result) {
	fmt.Fprintf(w, "\nHarvest summary: %d succeeded, %d failed, %d record(s), %d degraded enrichment(s) (total authors: %d)\n",
		res.Succeeded, res.Failed, len(res.Records), res.Degraded, res.Total())
}

// Author harvests one author and returns the sorted records along with
// the number of enrichments that degraded. Records collected before a
// failed page are discarded with the error.
func (h *Harvester) Author(ctx context.Context, a types.Author) ([]types.Record, int, error) {
	wantYear := ""
	if h.opts.Year > 0 {
		wantYear = strconv.Itoa(h.opts.Year)
	}

	var (
		recs     []types.Record
		degraded int
	)
	p := h.src.Search(scopus.AuthorQuery(a.ID, h.opts.Year))
	for p.Next(ctx) {
		e := p.Entry()
		if !scopus.Accepts(e, h.opts.Kinds) {
			continue
		}

		var names []string
		if h.opts.Details && e.EID != "" {
			d := h.src.FetchAuthors(ctx, e.EID)
			if d.Degraded {
				degraded++
			}
			names = d.Authors
		}

		rec := Normalize(e, names)
		if wantYear != "" && rec.YearValue() != wantYear {
			continue
		}
		rec.AuthorID = a.ID
		rec.AuthorName = a.Name
		recs = append(recs, rec)
	}
	if err := p.Err(); err != nil {
		return nil, degraded, err
	}

	SortRecords(recs)
	return recs, degraded, nil
}

func (h *Harvester) emit(ctx context.Context, a types.Author, recs []types.Record) error {
	var errs []error
	for _, s := range h.sinks {
		if err := s.WriteAuthor(ctx, a, recs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
