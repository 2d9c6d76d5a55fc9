// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package keys hands out API keys round-robin from a fixed credential set.
// The rotator does not know why callers rotate; that policy belongs to
// the search and detail loops.
package keys

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoCredentials is returned when a rotator is built from an empty key set.
var ErrNoCredentials = errors.New("no API keys configured")

// Rotator holds an ordered, immutable set of keys and a cursor into it.
// It is safe for concurrent use; concurrent callers share one cursor.
type Rotator struct {
	mu   sync.Mutex
	keys []string
	idx  int
}

// New returns a rotator over keys. Blank entries are dropped and the
// remaining keys are trimmed. It fails with ErrNoCredentials when
// nothing is left.
func New(keys []string) (*Rotator, error) {
	var clean []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoCredentials
	}
	return &Rotator{keys: clean}, nil
}

// Parse splits a comma- or newline-separated key list, as found in the
// SCOPUS_API_KEYS variable or a secrets file.
func Parse(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Current returns the key under the cursor.
func (r *Rotator) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[r.idx]
}

// Advance moves the cursor to the next key, wrapping after the last one.
func (r *Rotator) Advance() {
	r.mu.Lock()
	r.idx = (r.idx + 1) % len(r.keys)
	r.mu.Unlock()
}

// Index returns the cursor position.
func (r *Rotator) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idx
}

// Len returns the number of keys.
func (r *Rotator) Len() int { return len(r.keys) }

// Masked returns the current key with all but its last four characters
// hidden, for log output.
func (r *Rotator) Masked() string {
	return Mask(r.Current())
}

// Mask hides all but the last four characters of key.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
