// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scopus-harvest CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scopus-harvest/internal/harvest"
	"github.com/pdiddy/scopus-harvest/internal/logging"
	"github.com/pdiddy/scopus-harvest/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds credentials read from .secrets/ at startup.
	loadedSecrets map[string]string

	// logger is the process logger configured in PersistentPreRunE.
	logger = zerolog.Nop()

	// configErr holds the failure to read a config file, reported by
	// PersistentPreRunE.
	configErr error
)

// rootCmd is the base command for the scopus-harvest CLI.
var rootCmd = &cobra.Command{
	Use:   "scopus-harvest",
	Short: "Harvest publication metadata for a roster of Scopus authors",
	Long: `scopus-harvest pages through the Scopus search API for every author in a
roster, keeps the publication kinds you ask for, optionally looks up full
author lists, and writes one CSV per author plus a combined JSON file.

API keys come from the api_keys config entry, SCOPUS_HARVEST_API_KEYS,
SCOPUS_API_KEYS, or .secrets/scopus-api-keys, in that order. Several keys
may be given, separated by commas; they are rotated when one is throttled.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.Setup(logging.Config{
			Level:  viper.GetString("log_level"),
			Format: viper.GetString("log_format"),
		})
		if configErr != nil {
			return &harvest.ConfigError{Err: configErr}
		}
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Info().Str("path", f).Msg("using config file")
		}

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			names := make([]string, 0, len(s))
			for k := range s {
				names = append(names, k)
			}
			sort.Strings(names)
			logger.Debug().Strs("secrets", names).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./scopus-harvest.yaml or ~/.config/scopus-harvest/scopus-harvest.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", logging.FormatConsole, "log format: console or json")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	configErr = readConfig(viper.GetViper(), cfgFile)
}

// readConfig binds the environment and reads cfgFile, or
// scopus-harvest.yaml from the working directory or
// ~/.config/scopus-harvest when cfgFile is empty. Only a missing file on
// the default paths is tolerated.
func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("scopus-harvest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "scopus-harvest"))
		}
	}

	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// bindEnv wires the SCOPUS_HARVEST_ prefix and the legacy SCOPUS_LOG and
// SCOPUS_API_KEYS variables.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("SCOPUS_HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.BindEnv("log_level", "SCOPUS_HARVEST_LOG_LEVEL", "SCOPUS_LOG")
	v.BindEnv("api_keys", "SCOPUS_HARVEST_API_KEYS", "SCOPUS_API_KEYS")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
