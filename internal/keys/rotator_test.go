// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package keys

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsEmptySet(t *testing.T) {
	tests := []struct {
		name string
		keys []string
	}{
		{"nil", nil},
		{"empty slice", []string{}},
		{"blank entries only", []string{"", "  ", "\t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.keys)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, ErrNoCredentials)
		})
	}
}

func TestNew_TrimsAndDropsBlanks(t *testing.T) {
	r, err := New([]string{" k1 ", "", "k2"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "k1", r.Current())
}

func TestAdvance_WrapsAround(t *testing.T) {
	r, err := New([]string{"a", "b", "c"})
	require.NoError(t, err)

	var seen []string
	for i := 0; i < 5; i++ {
		seen = append(seen, r.Current())
		r.Advance()
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b"}, seen)
}

func TestAdvance_RoundRobinClosure(t *testing.T) {
	for n := 1; n <= 7; n++ {
		ks := make([]string, n)
		for i := range ks {
			ks[i] = string(rune('a' + i))
		}
		r, err := New(ks)
		require.NoError(t, err)

		// Start from a non-zero position to check closure from anywhere.
		r.Advance()
		start := r.Index()
		for i := 0; i < n; i++ {
			r.Advance()
			assert.GreaterOrEqual(t, r.Index(), 0)
			assert.Less(t, r.Index(), n)
		}
		assert.Equal(t, start, r.Index(), "n=%d", n)
	}
}

func TestAdvance_ConcurrentCallersStayInBounds(t *testing.T) {
	r, err := New([]string{"a", "b", "c"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Advance()
			_ = r.Current()
		}()
	}
	wg.Wait()

	// 30 advances over 3 keys lands back on the first.
	assert.Equal(t, 0, r.Index())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"comma separated", "k1,k2,k3", []string{"k1", "k2", "k3"}},
		{"spaces and empties", " k1 , ,k2,", []string{"k1", "k2"}},
		{"newline separated", "k1\nk2\r\nk3\n", []string{"k1", "k2", "k3"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****cdef", Mask("abcdcdef"))
	assert.Equal(t, "***", Mask("abc"))
	assert.Equal(t, "", Mask(""))
}
