// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scopus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scopus-harvest/internal/metrics"
)

func abstractHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestFetchAuthors_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/abstract/eid/2-s2.0-1", r.URL.Path)
		assert.Equal(t, "FULL", r.URL.Query().Get("view"))
		abstractHandler(`{"abstracts-retrieval-response":{"authors":{"author":[
			{"ce:indexed-name":"Smith J."},
			{"preferred-name":{"ce:indexed-name":"Doe A."}},
			{"authname":"Lee K."},
			{}
		]}}}`)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, []string{"k"}, Config{})
	rec := c.FetchAuthors(context.Background(), "2-s2.0-1")
	assert.Equal(t, []string{"Smith J.", "Doe A.", "Lee K."}, rec.Authors)
	assert.Equal(t, 1, rec.Attempts)
	assert.False(t, rec.Degraded)
}

func TestFetchAuthors_SingleObject(t *testing.T) {
	srv := httptest.NewServer(abstractHandler(
		`{"abstracts-retrieval-response":{"authors":{"author":{"ce:indexed-name":"Solo S."}}}}`))
	defer srv.Close()

	c := newTestClient(t, srv, []string{"k"}, Config{})
	rec := c.FetchAuthors(context.Background(), "e")
	assert.Equal(t, []string{"Solo S."}, rec.Authors)
}

func TestFetchAuthors_NoAuthorsSection(t *testing.T) {
	srv := httptest.NewServer(abstractHandler(`{"abstracts-retrieval-response":{}}`))
	defer srv.Close()

	c := newTestClient(t, srv, []string{"k"}, Config{})
	rec := c.FetchAuthors(context.Background(), "e")
	assert.Empty(t, rec.Authors)
	assert.False(t, rec.Degraded)
}

func TestFetchAuthors_EmptyEID(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, []string{"k"}, Config{})
	rec := c.FetchAuthors(context.Background(), "  ")
	assert.Empty(t, rec.Authors)
	assert.Equal(t, 0, rec.Attempts)
	assert.False(t, rec.Degraded)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFetchAuthors_RotatesEveryFailure(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("X-ELS-APIKey"))
		n := len(seen)
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		abstractHandler(`{"abstracts-retrieval-response":{"authors":{"author":[{"authname":"X"}]}}}`)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, []string{"a", "b"}, Config{DetailAttempts: 4})
	rec := c.FetchAuthors(context.Background(), "e")
	assert.Equal(t, []string{"X"}, rec.Authors)
	assert.Equal(t, 3, rec.Attempts)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "a"}, seen)
}

func TestFetchAuthors_DegradesAfterBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	before := testutil.ToFloat64(metrics.DegradedEnrichments)
	c := newTestClient(t, srv, []string{"a"}, Config{DetailAttempts: 4})
	rec := c.FetchAuthors(context.Background(), "e")
	assert.Empty(t, rec.Authors)
	assert.True(t, rec.Degraded)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DegradedEnrichments))
	assert.Equal(t, 4, rec.Attempts)
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetchAuthors_MalformedBodyRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte("<html>busy</html>"))
			return
		}
		abstractHandler(`{"abstracts-retrieval-response":{"authors":{"author":[{"authname":"Y"}]}}}`)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, []string{"a"}, Config{})
	rec := c.FetchAuthors(context.Background(), "e")
	assert.Equal(t, []string{"Y"}, rec.Authors)
	assert.Equal(t, 2, rec.Attempts)
}

func TestFetchAuthors_NotFoundEndsEarly(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, []string{"a"}, Config{})
	rec := c.FetchAuthors(context.Background(), "e")
	assert.True(t, rec.Degraded)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseAuthors_UnexpectedShape(t *testing.T) {
	_, err := parseAuthors([]byte(`{"abstracts-retrieval-response":{"authors":{"author":"nope"}}}`))
	require.Error(t, err)
}
