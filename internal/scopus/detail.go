package scopus

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/pdiddy/scopus-harvest/internal/httputil"
	"github.com/pdiddy/scopus-harvest/internal/metrics"
)

// DetailRecord is the outcome of one author-list lookup. It is always a
// usable value: a lookup that gave up carries no authors and Degraded set.
type DetailRecord struct {
	EID     string
	Authors []string
	// Attempts is the number of requests made; zero for an empty EID.
	Attempts int
	// Degraded is set when every attempt failed.
	Degraded bool
}

// FetchAuthors retrieves the author display names for eid from the
// abstract endpoint. It has its own attempt budget, separate from any
// search page; each failed attempt rotates the key and backs off before
// the next. A non-retryable response or a cancelled context ends the
// lookup early. FetchAuthors never fails: it degrades to an empty list.
func (c *Client) FetchAuthors(ctx context.Context, eid string) DetailRecord {
	rec := DetailRecord{EID: eid}
	eid = strings.TrimSpace(eid)
	if eid == "" {
		return rec
	}

	log := c.logger.With().Str("eid", eid).Logger()
	budget := c.cfg.DetailAttempts
	for n := 0; n < budget; n++ {
		a := c.detailAttempt(eid)
		a.Number = n
		rec.Attempts = n + 1

		out := c.exec.Do(ctx, a)
		if out.Kind == httputil.OutcomeSuccess {
			names, err := parseAuthors(out.Body)
			if err == nil {
				rec.Authors = names
				return rec
			}
			log.Debug().Err(err).Int("attempt", n).Msg("unexpected abstract document shape")
		} else if out.Kind == httputil.OutcomeFatal {
			log.Debug().Err(out.Err).Msg("detail lookup not retryable")
			break
		}

		c.rotate(metrics.OpDetail)
		if n < budget-1 {
			if err := c.exec.Wait(ctx, metrics.OpDetail, n); err != nil {
				break
			}
		}
	}

	rec.Degraded = true
	metrics.DegradedEnrichments.Inc()
	log.Warn().Int("attempts", rec.Attempts).Msg("author lookup degraded to empty list")
	return rec
}

// parseAuthors extracts display names from an abstract document. A lone
// author object is treated as a one-element list; authors without any
// usable name are skipped.
func parseAuthors(body []byte) ([]string, error) {
	var doc abstractResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(doc.Root.Authors.Author)
	var list []abstractAuthor
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return []string{}, nil
	case raw[0] == '{':
		var one abstractAuthor
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		list = []abstractAuthor{one}
	default:
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(list))
	for _, a := range list {
		if n := a.displayName(); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}
