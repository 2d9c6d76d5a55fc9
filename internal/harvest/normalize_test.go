package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scopus-harvest/internal/scopus"
	"github.com/pdiddy/scopus-harvest/pkg/types"
)

func strp(s string) *string { return &s }

func TestNormalize(t *testing.T) {
	e := scopus.Entry{
		EID:                "2-s2.0-1",
		Title:              "Graphs",
		DOI:                "10.1/abc",
		CitedByCount:       "17",
		CoverDate:          "2024-3-9",
		PublicationName:    "J. Graphs",
		Volume:             "5",
		IssueID:            "2",
		PageRange:          "1-10",
		Subtype:            "ar",
		SubtypeDescription: "Article",
		Creator:            "Smith J.",
	}
	r := Normalize(e, []string{"Smith J.", "Doe A."})

	assert.Equal(t, "Graphs", r.Title)
	assert.Equal(t, "https://www.scopus.com/record/display.uri?eid=2-s2.0-1&origin=recordpage", r.ScopusURL)
	require.NotNil(t, r.DOIURL)
	assert.Equal(t, "https://doi.org/10.1/abc", *r.DOIURL)
	assert.Equal(t, 17, r.CitedBy)
	assert.Equal(t, strp("2024"), r.Year)
	assert.Equal(t, strp("03"), r.Month)
	assert.Equal(t, strp("09"), r.Day)
	assert.Equal(t, strp("Article"), r.Type)
	assert.Equal(t, strp("ar"), r.Subtype)
	assert.Equal(t, strp("Smith J."), r.FirstAuthor)
	assert.Equal(t, []string{"Smith J.", "Doe A."}, r.Authors)
}

func TestNormalize_Sparse(t *testing.T) {
	r := Normalize(scopus.Entry{EID: "e", CitedByCount: "n/a", CoverDate: "2020-xx"}, nil)
	assert.Nil(t, r.DOI)
	assert.Nil(t, r.DOIURL)
	assert.Equal(t, 0, r.CitedBy)
	assert.Equal(t, strp("2020"), r.Year)
	assert.Nil(t, r.Month)
	assert.Nil(t, r.Day)
	assert.Nil(t, r.Venue)
	assert.NotNil(t, r.Authors)
	assert.Empty(t, r.Authors)
}

func TestSortRecords(t *testing.T) {
	recs := []types.Record{
		{Title: "a", Year: strp("2020"), Month: strp("01")},
		{Title: "none"},
		{Title: "b", Year: strp("2022"), Month: strp("03")},
		{Title: "c", Year: strp("2022"), Month: strp("11")},
		{Title: "z", Year: strp("2022"), Month: strp("03")},
	}
	SortRecords(recs)

	var titles []string
	for _, r := range recs {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"c", "z", "b", "a", "none"}, titles)
}
