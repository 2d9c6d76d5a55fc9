// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/scopus-harvest/internal/output"
	"github.com/pdiddy/scopus-harvest/pkg/types"
)

const testAPIKey = "test-key-7f3a"

// fakeScopusAPI answers every search for AU-ID(throttled) with 429 and
// serves one article for any other author.
func fakeScopusAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.Header.Get("X-ELS-APIKey"))
		q := r.URL.Query().Get("query")
		if strings.Contains(q, "AU-ID(throttled)") {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var entries []map[string]any
		if r.URL.Query().Get("start") == "0" {
			entries = []map[string]any{{
				"eid":                "2-s2.0-42",
				"dc:title":           "Harvested Paper",
				"subtype":            "ar",
				"subtypeDescription": "Article",
				"prism:coverDate":    "2023-05-01",
				"citedby-count":      "7",
			}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"search-results": map[string]any{"opensearch:totalResults": "1", "entry": entries},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// executeCLI runs the root command with args and restores every flag it
// changed once the test ends.
func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		for _, fs := range []*pflag.FlagSet{rootCmd.PersistentFlags(), harvestCmd.Flags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				if f.Changed {
					f.Value.Set(f.DefValue)
					f.Changed = false
				}
			})
		}
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHarvestCommand_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCOPUS_HARVEST_API_KEYS", "")
	t.Setenv("SCOPUS_API_KEYS", testAPIKey)
	t.Setenv("SCOPUS_SLEEP", "")

	srv := fakeScopusAPI(t)
	rosterPath := filepath.Join(dir, "authors.csv")
	require.NoError(t, os.WriteFile(rosterPath,
		[]byte("author_id,name\nthrottled,Ada Busy\n42,Grace Fine\n"), 0o644))
	combined := filepath.Join(dir, "out", "all.json")
	report := filepath.Join(dir, "report.yaml")

	out, err := executeCLI(t, "harvest",
		"--log-level", "error",
		"--base-url", srv.URL,
		"--authors-file", rosterPath,
		"--out", filepath.Join(dir, "out"),
		"--combined", combined,
		"--report", report,
		"--search-attempts", "2",
		"--backoff-base", "1ms",
		"--backoff-cap", "1ms",
		"--page-delay", "0s",
		"--author-delay", "0s",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 author(s) failed")
	assert.Contains(t, out, "failed:  Ada Busy (throttled)")
	assert.Contains(t, out, "saved:   Grace Fine (42): 1 record(s)")
	assert.Contains(t, out, "Harvest summary: 1 succeeded, 1 failed, 1 record(s)")

	data, err := os.ReadFile(combined)
	require.NoError(t, err)
	var recs []types.Record
	require.NoError(t, json.Unmarshal(data, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "2-s2.0-42", recs[0].EID)
	assert.Equal(t, "42", recs[0].AuthorID)

	assert.FileExists(t, output.CSVWriter{Dir: filepath.Join(dir, "out")}.Path(types.Author{ID: "42", Name: "Grace Fine"}))
	assert.NoFileExists(t, output.CSVWriter{Dir: filepath.Join(dir, "out")}.Path(types.Author{ID: "throttled", Name: "Ada Busy"}))

	raw, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), testAPIKey)
	var rep struct {
		Records int `yaml:"records"`
		Result  struct {
			Succeeded int `yaml:"succeeded"`
			Failed    int `yaml:"failed"`
			Failures  []struct {
				Author types.Author `yaml:"author"`
				Error  string       `yaml:"error"`
			} `yaml:"failures"`
		} `yaml:"result"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &rep))
	assert.Equal(t, 1, rep.Records)
	assert.Equal(t, 1, rep.Result.Succeeded)
	assert.Equal(t, 1, rep.Result.Failed)
	require.Len(t, rep.Result.Failures, 1)
	assert.Equal(t, "throttled", rep.Result.Failures[0].Author.ID)
	assert.Contains(t, rep.Result.Failures[0].Error, "retry attempts exhausted")
}
