// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scopus pages through Scopus search results for a query and
// enriches individual records with their full author list. Every request
// carries the rotator's current API key; the search pager rotates keys
// when a page exhausts its attempt budget and the detail lookup rotates
// after every failed attempt.
package scopus

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scopus-harvest/internal/httputil"
	"github.com/pdiddy/scopus-harvest/internal/keys"
	"github.com/pdiddy/scopus-harvest/internal/metrics"
)

const (
	// DefaultBaseURL is the Elsevier content API root.
	DefaultBaseURL = "https://api.elsevier.com/content"

	// apiKeyHeader carries the Elsevier API key.
	apiKeyHeader = "X-ELS-APIKey"

	searchPath   = "/search/scopus"
	abstractPath = "/abstract/eid/"
)

// Config holds the paging and retry settings for a Client.
type Config struct {
	// BaseURL is the API root; tests point it at an httptest server.
	BaseURL string

	// PageSize is the count requested per search page.
	PageSize int

	// SearchAttempts is the attempt budget for one search page call.
	SearchAttempts int

	// DetailAttempts is the attempt budget for one detail lookup.
	DetailAttempts int

	// MaxKeyPasses bounds the search budgets spent on one offset. Zero
	// means one pass per key.
	MaxKeyPasses int

	// PageDelay is the pause before every page after the first.
	PageDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.PageSize <= 0 {
		c.PageSize = 25
	}
	if c.SearchAttempts <= 0 {
		c.SearchAttempts = 5
	}
	if c.DetailAttempts <= 0 {
		c.DetailAttempts = 4
	}
}

// Client issues search and detail calls through an Executor, drawing
// API keys from a shared Rotator.
type Client struct {
	exec   *httputil.Executor
	keys   *keys.Rotator
	cfg    Config
	logger zerolog.Logger

	// sleep implements the inter-page delay. Tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a client. The rotator is shared: rotations made by one
// query carry over to the next.
func New(exec *httputil.Executor, rot *keys.Rotator, cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		exec:   exec,
		keys:   rot,
		cfg:    cfg,
		logger: logger,
		sleep:  httputil.SleepContext,
	}
}

// keyPasses returns how many full search budgets one offset may consume.
func (c *Client) keyPasses() int {
	if c.cfg.MaxKeyPasses > 0 {
		return c.cfg.MaxKeyPasses
	}
	return c.keys.Len()
}

// rotate advances the key cursor on behalf of op.
func (c *Client) rotate(op string) {
	c.keys.Advance()
	metrics.KeyRotations.WithLabelValues(op).Inc()
	c.logger.Debug().
		Str("op", op).
		Int("key_index", c.keys.Index()).
		Str("key", c.keys.Masked()).
		Msg("rotated API key")
}

// headers returns the request headers for the current key.
func (c *Client) headers() http.Header {
	return http.Header{
		"Accept":     {"application/json"},
		apiKeyHeader: {c.keys.Current()},
	}
}

func (c *Client) searchAttempt(query string, offset int) httputil.Attempt {
	return httputil.Attempt{
		Op:       metrics.OpSearch,
		Endpoint: c.cfg.BaseURL + searchPath,
		Header:   c.headers(),
		Params: url.Values{
			"query": {query},
			"field": {searchFields},
			"count": {fmt.Sprintf("%d", c.cfg.PageSize)},
			"start": {fmt.Sprintf("%d", offset)},
		},
		Validate: validateSearch,
	}
}

func (c *Client) detailAttempt(eid string) httputil.Attempt {
	return httputil.Attempt{
		Op:       metrics.OpDetail,
		Endpoint: c.cfg.BaseURL + abstractPath + url.PathEscape(eid),
		Header:   c.headers(),
		Params:   url.Values{"view": {"FULL"}},
	}
}

// AuthorQuery builds the search query for one author, optionally
// restricted to a publication year.
func AuthorQuery(authorID string, year int) string {
	q := fmt.Sprintf("AU-ID(%s)", strings.TrimSpace(authorID))
	if year > 0 {
		q += fmt.Sprintf(" AND PUBYEAR IS %d", year)
	}
	return q
}

// RecordURL returns the Scopus web page for an EID.
func RecordURL(eid string) string {
	return "https://www.scopus.com/record/display.uri?eid=" + eid + "&origin=recordpage"
}
