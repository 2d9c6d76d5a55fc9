// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file is one secret: the file name is the key and the trimmed file
// contents are the value.
//
// The harvester reads scopus-api-keys, which holds one or more Scopus API
// keys separated by commas or newlines.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scopus-harvest/internal/keys"
)

// DefaultDir is the secrets directory searched relative to the working directory.
const DefaultDir = ".secrets"

// ScopusAPIKeys is the file holding the Scopus key list.
const ScopusAPIKeys = "scopus-api-keys"

// Load reads all files in dir and returns a map of file name to trimmed
// contents. A missing directory is not an error. Unreadable files are
// logged and skipped.
func Load(dir string, logger zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// APIKeys returns the Scopus keys found in a loaded secret set, in file order.
func APIKeys(loaded map[string]string) []string {
	return keys.Parse(loaded[ScopusAPIKeys])
}
