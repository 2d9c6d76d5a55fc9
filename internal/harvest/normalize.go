package harvest

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/scopus-harvest/internal/scopus"
	"github.com/pdiddy/scopus-harvest/pkg/types"
)

// Normalize converts a search entry and its (possibly empty) author list
// into a Record. Absent optional fields stay nil.
func Normalize(e scopus.Entry, authors []string) types.Record {
	if authors == nil {
		authors = []string{}
	}
	year, month, day := dateParts(e.CoverDate)

	rec := types.Record{
		Title:       e.Title,
		EID:         e.EID,
		ScopusURL:   scopus.RecordURL(e.EID),
		DOI:         optional(e.DOI),
		CitedBy:     citedBy(e.CitedByCount),
		CoverDate:   e.CoverDate,
		Year:        year,
		Month:       month,
		Day:         day,
		Venue:       optional(e.PublicationName),
		Type:        optional(e.SubtypeDescription),
		Subtype:     optional(e.Subtype),
		Volume:      optional(e.Volume),
		Issue:       optional(e.IssueID),
		Pages:       optional(e.PageRange),
		FirstAuthor: optional(e.Creator),
		Authors:     authors,
	}
	if rec.DOI != nil {
		u := "https://doi.org/" + *rec.DOI
		rec.DOIURL = &u
	}
	return rec
}

// dateParts splits a YYYY-MM-DD cover date. Month and day are zero
// padded to two digits; any non-numeric part is left nil.
func dateParts(date string) (year, month, day *string) {
	if date == "" {
		return nil, nil, nil
	}
	parts := strings.Split(date, "-")
	if len(parts) > 0 && isDigits(parts[0]) {
		year = &parts[0]
	}
	if len(parts) > 1 && isDigits(parts[1]) {
		m := zeroPad(parts[1])
		month = &m
	}
	if len(parts) > 2 && isDigits(parts[2]) {
		d := zeroPad(parts[2])
		day = &d
	}
	return year, month, day
}

func citedBy(raw scopus.FlexString) int {
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0
	}
	return n
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func zeroPad(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// SortRecords orders records newest first: by year, then month, then
// title, all descending. Records without a numeric year sort last.
func SortRecords(recs []types.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		yi, yj := yearKey(recs[i]), yearKey(recs[j])
		if yi != yj {
			return yi > yj
		}
		if mi, mj := recs[i].MonthValue(), recs[j].MonthValue(); mi != mj {
			return mi > mj
		}
		return recs[i].Title > recs[j].Title
	})
}

func yearKey(r types.Record) int {
	y := r.YearValue()
	if !isDigits(y) {
		return -1
	}
	n, err := strconv.Atoi(y)
	if err != nil {
		return -1
	}
	return n
}
