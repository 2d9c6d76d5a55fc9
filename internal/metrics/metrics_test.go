// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Retries.WithLabelValues(OpSearch))
	Retries.WithLabelValues(OpSearch).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Retries.WithLabelValues(OpSearch)))

	beforeDeg := testutil.ToFloat64(DegradedEnrichments)
	DegradedEnrichments.Inc()
	assert.Equal(t, beforeDeg+1, testutil.ToFloat64(DegradedEnrichments))
}

func TestWriteFile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_things_total",
		Help: "Things counted in a test",
	})
	reg.MustRegister(c)
	c.Add(3)

	path := filepath.Join(t.TempDir(), "sub", "harvest.prom")
	require.NoError(t, WriteFile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "# TYPE test_things_total counter"), text)
	assert.True(t, strings.Contains(text, "test_things_total 3"), text)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestServe_ScrapesAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, done, err := Serve(ctx, "127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	url := "http://" + addr.String() + "/metrics"

	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "harvest_records_total")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop after cancel")
	}
	_, err = http.Get(url)
	assert.Error(t, err)
}

func TestServe_BadAddress(t *testing.T) {
	_, _, err := Serve(context.Background(), "256.0.0.1:bad", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on 256.0.0.1:bad")
}
