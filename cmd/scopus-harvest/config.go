// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/scopus-harvest/internal/harvest"
	"github.com/pdiddy/scopus-harvest/internal/keys"
	"github.com/pdiddy/scopus-harvest/internal/scopus"
	"github.com/pdiddy/scopus-harvest/internal/secrets"
	"github.com/pdiddy/scopus-harvest/pkg/types"
)

// legacySleepEnv holds the inter-page delay in seconds, kept for older
// deployments.
const legacySleepEnv = "SCOPUS_SLEEP"

// buildConfig assembles the harvest configuration from flags, config file
// and environment (all via v) plus the loaded secrets. Every failure is a
// *harvest.ConfigError.
func buildConfig(v *viper.Viper, loaded map[string]string) (types.HarvestConfig, error) {
	var cfg types.HarvestConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, &harvest.ConfigError{Err: fmt.Errorf("decoding settings: %w", err)}
	}

	cfg.APIKeys = apiKeys(v, loaded)
	if len(cfg.APIKeys) == 0 {
		return cfg, &harvest.ConfigError{Err: keys.ErrNoCredentials}
	}

	kinds, err := kindsFrom(v.Get("types"))
	if err != nil {
		return cfg, &harvest.ConfigError{Err: err}
	}
	cfg.Kinds = kinds

	if !v.IsSet("page_delay") {
		if raw := strings.TrimSpace(os.Getenv(legacySleepEnv)); raw != "" {
			secs, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return cfg, &harvest.ConfigError{Err: fmt.Errorf("%s: %w", legacySleepEnv, err)}
			}
			cfg.PageDelay = time.Duration(secs * float64(time.Second))
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, &harvest.ConfigError{Err: err}
	}
	return cfg, nil
}

// apiKeys returns the first non-empty key list from settings (config
// file, SCOPUS_HARVEST_API_KEYS, SCOPUS_API_KEYS) or the secrets file.
func apiKeys(v *viper.Viper, loaded map[string]string) []string {
	switch raw := v.Get("api_keys").(type) {
	case string:
		if ks := keys.Parse(raw); len(ks) > 0 {
			return ks
		}
	case []any:
		var ks []string
		for _, k := range raw {
			ks = append(ks, keys.Parse(fmt.Sprint(k))...)
		}
		if len(ks) > 0 {
			return ks
		}
	case []string:
		if ks := keys.Parse(strings.Join(raw, ",")); len(ks) > 0 {
			return ks
		}
	}
	return secrets.APIKeys(loaded)
}

// kindsFrom accepts the types setting as a comma-separated string or a
// YAML list. "*" or nothing selects every kind.
func kindsFrom(raw any) ([]string, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return scopus.ParseKinds(t), nil
	case []string:
		return scopus.ParseKinds(strings.Join(t, ",")), nil
	case []any:
		parts := make([]string, 0, len(t))
		for _, k := range t {
			parts = append(parts, fmt.Sprint(k))
		}
		return scopus.ParseKinds(strings.Join(parts, ",")), nil
	default:
		return nil, fmt.Errorf("types: unsupported value %v", raw)
	}
}
