package scopus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/scopus-harvest/internal/httputil"
	"github.com/pdiddy/scopus-harvest/internal/metrics"
)

// ExhaustedError reports a search page that failed on every key pass.
// It aborts the query it belongs to and nothing else.
type ExhaustedError struct {
	Query  string
	Offset int
	Passes int
	Err    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("search %q at offset %d failed after %d key pass(es): %v", e.Query, e.Offset, e.Passes, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// PageState tracks the cursor of one query.
type PageState struct {
	// Offset is the start index of the next page to request. It only grows.
	Offset int
	// PageSize is the count requested per page.
	PageSize int
	// Total is the result count reported upstream, recorded the first time
	// a page carries it and never overwritten. Nil while unknown.
	Total *int
	// Pages counts the pages fetched so far.
	Pages int
	// Exhausted is set once no further page will be requested.
	Exhausted bool
}

// Pager yields the entries of one search query, fetching pages on demand.
// Use it like bufio.Scanner:
//
//	p := client.Search(query)
//	for p.Next(ctx) {
//		e := p.Entry()
//	}
//	if err := p.Err(); err != nil { ... }
//
// A Pager is single-use; call Search again to restart from offset zero.
type Pager struct {
	c     *Client
	query string
	state PageState
	buf   []Entry
	cur   Entry
	err   error
}

// Search returns a pager over query positioned before the first entry.
func (c *Client) Search(query string) *Pager {
	return &Pager{
		c:     c,
		query: query,
		state: PageState{PageSize: c.cfg.PageSize},
	}
}

// Next advances to the next entry, fetching a page when the buffer is
// empty. It returns false when the sequence is complete or a page failed;
// Err distinguishes the two.
func (p *Pager) Next(ctx context.Context) bool {
	for {
		if len(p.buf) > 0 {
			p.cur, p.buf = p.buf[0], p.buf[1:]
			return true
		}
		if p.err != nil || p.state.Exhausted {
			return false
		}
		if err := p.fetch(ctx); err != nil {
			p.err = err
			return false
		}
	}
}

// Entry returns the entry produced by the last successful Next.
func (p *Pager) Entry() Entry { return p.cur }

// Err returns the error that stopped the pager, if any.
func (p *Pager) Err() error { return p.err }

// State returns a snapshot of the paging state.
func (p *Pager) State() PageState {
	s := p.state
	if s.Total != nil {
		t := *s.Total
		s.Total = &t
	}
	return s
}

// All drains the pager into a slice.
func (p *Pager) All(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for p.Next(ctx) {
		out = append(out, p.Entry())
	}
	return out, p.Err()
}

// fetch requests the page at the current offset and updates the state.
func (p *Pager) fetch(ctx context.Context) error {
	if p.state.Pages > 0 {
		if err := p.c.sleep(ctx, p.c.cfg.PageDelay); err != nil {
			return err
		}
	}

	page, err := p.c.fetchPage(ctx, p.query, p.state.Offset)
	if err != nil {
		return err
	}
	p.state.Pages++
	metrics.Pages.Inc()

	if p.state.Total == nil {
		if t, ok := parseTotal(page.TotalResults); ok {
			p.state.Total = &t
		}
	}

	kept := make([]Entry, 0, len(page.Entries))
	for _, e := range page.Entries {
		if e.IsErrorPlaceholder() {
			metrics.Placeholders.Inc()
			continue
		}
		kept = append(kept, e)
	}
	p.buf = kept
	metrics.Entries.Add(float64(len(kept)))

	p.state.Offset += p.state.PageSize
	switch {
	case len(kept) == 0:
		p.state.Exhausted = true
	case p.state.Total == nil && len(kept) < p.state.PageSize:
		p.state.Exhausted = true
	case p.state.Total != nil && p.state.Offset >= *p.state.Total:
		p.state.Exhausted = true
	}

	p.c.logger.Debug().
		Str("query", p.query).
		Int("offset", p.state.Offset-p.state.PageSize).
		Int("entries", len(kept)).
		Bool("exhausted", p.state.Exhausted).
		Msg("fetched search page")
	return nil
}

// fetchPage runs one full search budget per key pass, rotating the key
// after every exhausted pass, until a pass succeeds or the passes run out.
// Errors other than exhaustion (a non-retryable status, a cancelled
// context) end the loop at once.
func (c *Client) fetchPage(ctx context.Context, query string, offset int) (*searchResults, error) {
	passes := c.keyPasses()
	var lastErr error
	for pass := 0; pass < passes; pass++ {
		resp, err := c.exec.Execute(ctx, c.cfg.SearchAttempts, func(int) httputil.Attempt {
			return c.searchAttempt(query, offset)
		})
		if err == nil {
			sr, err := decodeSearch(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("decoding search page at offset %d: %w", offset, err)
			}
			return sr, nil
		}
		if !errors.Is(err, httputil.ErrRetryExhausted) {
			return nil, fmt.Errorf("search %q at offset %d: %w", query, offset, err)
		}

		lastErr = err
		c.logger.Warn().
			Str("query", query).
			Int("offset", offset).
			Int("pass", pass+1).
			Int("max_passes", passes).
			Err(err).
			Msg("search budget exhausted, rotating key")
		c.rotate(metrics.OpSearch)
	}
	return nil, &ExhaustedError{Query: query, Offset: offset, Passes: passes, Err: lastErr}
}

// parseTotal accepts only a plain run of digits.
func parseTotal(raw FlexString) (int, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
