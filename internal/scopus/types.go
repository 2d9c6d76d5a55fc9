package scopus

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// searchFields is the field list requested from the search endpoint.
var searchFields = strings.Join([]string{
	"dc:title", "eid", "prism:doi", "citedby-count", "prism:coverDate",
	"subtype", "subtypeDescription", "prism:publicationName", "prism:volume",
	"prism:issueIdentifier", "prism:pageRange", "dc:creator",
}, ",")

// searchResponse is the top-level search API document.
type searchResponse struct {
	SearchResults *searchResults `json:"search-results"`
}

var errNoSearchResults = errors.New("missing search-results object")

// decodeSearch parses a search page body. A document without a
// search-results object is an error.
func decodeSearch(body []byte) (*searchResults, error) {
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, err
	}
	if sr.SearchResults == nil {
		return nil, errNoSearchResults
	}
	return sr.SearchResults, nil
}

func validateSearch(body []byte) error {
	_, err := decodeSearch(body)
	return err
}

type searchResults struct {
	TotalResults FlexString `json:"opensearch:totalResults"`
	StartIndex   FlexString `json:"opensearch:startIndex"`
	ItemsPerPage FlexString `json:"opensearch:itemsPerPage"`
	Entries      []Entry    `json:"entry"`
}

// Entry is one search hit as returned upstream.
type Entry struct {
	EID                string     `json:"eid"`
	Identifier         string     `json:"dc:identifier"`
	Title              string     `json:"dc:title"`
	DOI                string     `json:"prism:doi"`
	CitedByCount       FlexString `json:"citedby-count"`
	CoverDate          string     `json:"prism:coverDate"`
	PublicationName    string     `json:"prism:publicationName"`
	Volume             string     `json:"prism:volume"`
	IssueID            string     `json:"prism:issueIdentifier"`
	PageRange          string     `json:"prism:pageRange"`
	Subtype            string     `json:"subtype"`
	SubtypeDescription string     `json:"subtypeDescription"`
	Creator            string     `json:"dc:creator"`

	// Error is present on the placeholder entry Scopus returns in place of
	// real hits (e.g. "Result set was empty").
	Error json.RawMessage `json:"error,omitempty"`
}

// IsErrorPlaceholder reports whether the entry is an upstream error marker
// rather than a real result.
func (e Entry) IsErrorPlaceholder() bool {
	return len(e.Error) > 0
}

// FlexString decodes a JSON string, number or null into a string. Scopus
// is not consistent about quoting counts.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = FlexString(n.String())
		return nil
	}
}

// abstractResponse is the subset of the abstract retrieval document used
// to recover the author list.
type abstractResponse struct {
	Root struct {
		Authors struct {
			// Author is either a list of authors or, for single-author
			// records, one bare object.
			Author json.RawMessage `json:"author"`
		} `json:"authors"`
	} `json:"abstracts-retrieval-response"`
}

type abstractAuthor struct {
	IndexedName   string `json:"ce:indexed-name"`
	PreferredName struct {
		IndexedName string `json:"ce:indexed-name"`
	} `json:"preferred-name"`
	AuthName string `json:"authname"`
}

// displayName picks the first non-empty of the indexed name, the
// preferred indexed name and the bare author name.
func (a abstractAuthor) displayName() string {
	for _, n := range []string{a.IndexedName, a.PreferredName.IndexedName, a.AuthName} {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return ""
}
