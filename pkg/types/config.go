package types

import (
	"fmt"
	"time"
)

// Default knob values. A zero value in HarvestConfig selects the default.
const (
	DefaultPageSize       = 25
	DefaultSearchAttempts = 5
	DefaultDetailAttempts = 4
	DefaultBackoffBase    = 1 * time.Second
	DefaultBackoffCap     = 30 * time.Second
	DefaultPageDelay      = 250 * time.Millisecond
	DefaultAuthorDelay    = 100 * time.Millisecond
	DefaultTimeout        = 20 * time.Second
	DefaultUserAgent      = "scopus-harvest/0.1"
	DefaultAuthorsFile    = "data/authors.csv"
	DefaultOutputDir      = "data/scopus"
	DefaultCombinedJSON   = "data/scopus/scopus.json"
	maxScopusPageSize     = 200
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// RequestsPerSecond caps the request rate across all calls. Zero means
	// no ceiling beyond the fixed delays.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// BaseURL overrides the Scopus API root. Empty selects the public endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// RetryConfig holds the per-call attempt budgets and the backoff schedule.
type RetryConfig struct {
	// SearchAttempts is the attempt ceiling for one search page call (default 5).
	SearchAttempts int `json:"search_attempts" yaml:"search_attempts" mapstructure:"search_attempts"`

	// DetailAttempts is the attempt ceiling for one detail lookup (default 4).
	DetailAttempts int `json:"detail_attempts" yaml:"detail_attempts" mapstructure:"detail_attempts"`

	// BackoffBase is multiplied by 2^attempt before each retry (default 1s).
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base"`

	// BackoffCap bounds a single backoff wait (default 30s).
	BackoffCap time.Duration `json:"backoff_cap" yaml:"backoff_cap" mapstructure:"backoff_cap"`

	// MaxKeyPasses bounds how many full search budgets are spent on one
	// page offset, rotating the key between passes. Zero means one pass
	// per configured key.
	MaxKeyPasses int `json:"max_key_passes" yaml:"max_key_passes" mapstructure:"max_key_passes"`
}

// HarvestConfig holds settings for a harvest run.
type HarvestConfig struct {
	HTTPConfig  `yaml:",inline" mapstructure:",squash"`
	RetryConfig `yaml:",inline" mapstructure:",squash"`

	// APIKeys is the ordered credential set. It must not be empty.
	APIKeys []string `json:"-" yaml:"-" mapstructure:"-"`

	// PageSize is the number of entries requested per search page (default 25).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`

	// PageDelay is the pause between consecutive search pages (default 250ms).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay" mapstructure:"page_delay"`

	// AuthorDelay is the pause between consecutive authors (default 100ms).
	AuthorDelay time.Duration `json:"author_delay" yaml:"author_delay" mapstructure:"author_delay"`

	// AuthorsFile is the roster CSV with author_id,name columns.
	AuthorsFile string `json:"authors_file" yaml:"authors_file" mapstructure:"authors_file"`

	// OutputDir receives one CSV per author.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// CombinedJSON is the path of the combined record file.
	CombinedJSON string `json:"combined_json" yaml:"combined_json" mapstructure:"combined_json"`

	// DBPath optionally names a SQLite store that receives every record.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty" mapstructure:"db_path"`

	// Details enables the per-record author list lookup.
	Details bool `json:"details" yaml:"details" mapstructure:"details"`

	// Year restricts results to one publication year. Zero means any year.
	Year int `json:"year,omitempty" yaml:"year,omitempty" mapstructure:"year"`

	// Kinds lists accepted publication kinds (e.g. Article, Review).
	// Empty accepts every kind.
	Kinds []string `json:"kinds" yaml:"kinds" mapstructure:"-"`
}

// ApplyDefaults fills unset knobs with their default values.
func (c *HarvestConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.SearchAttempts == 0 {
		c.SearchAttempts = DefaultSearchAttempts
	}
	if c.DetailAttempts == 0 {
		c.DetailAttempts = DefaultDetailAttempts
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = DefaultBackoffCap
	}
	if c.MaxKeyPasses == 0 {
		c.MaxKeyPasses = len(c.APIKeys)
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.AuthorsFile == "" {
		c.AuthorsFile = DefaultAuthorsFile
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.CombinedJSON == "" {
		c.CombinedJSON = DefaultCombinedJSON
	}
}

// Validate reports the first knob that holds an unusable value.
// Call it after ApplyDefaults.
func (c HarvestConfig) Validate() error {
	switch {
	case c.PageSize < 1 || c.PageSize > maxScopusPageSize:
		return fmt.Errorf("page size %d out of range 1-%d", c.PageSize, maxScopusPageSize)
	case c.SearchAttempts < 1:
		return fmt.Errorf("search attempts must be positive, got %d", c.SearchAttempts)
	case c.DetailAttempts < 1:
		return fmt.Errorf("detail attempts must be positive, got %d", c.DetailAttempts)
	case c.BackoffBase < 0 || c.BackoffCap < 0:
		return fmt.Errorf("backoff durations must not be negative")
	case c.PageDelay < 0 || c.AuthorDelay < 0:
		return fmt.Errorf("delays must not be negative")
	case c.RequestsPerSecond < 0:
		return fmt.Errorf("requests per second must not be negative, got %g", c.RequestsPerSecond)
	case c.MaxKeyPasses < 0:
		return fmt.Errorf("max key passes must not be negative, got %d", c.MaxKeyPasses)
	case c.Year < 0:
		return fmt.Errorf("invalid year %d", c.Year)
	}
	return nil
}
