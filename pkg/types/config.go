// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "evidence-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// RegistryConfig holds settings for the trial registry client.
type RegistryConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL overrides the registry API root (default
	// "https://clinicaltrials.gov/api/v2").
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// RequestsPerSecond limits outbound registry calls (default 3).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// MaxRetries is the number of retries on HTTP 429 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// TrialCacheConfig controls when cached trial records are re-fetched.
type TrialCacheConfig struct {
	// MaxAge is how long a cached record is trusted. Zero trusts records
	// indefinitely; they are then only re-fetched on explicit refresh.
	MaxAge time.Duration `json:"max_age" yaml:"max_age" mapstructure:"max_age"`
}

// ClassifierConfig holds settings for study design classification.
type ClassifierConfig struct {
	// MinConfidence is the exclusive score threshold for keeping a label (default 0.3).
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence" mapstructure:"min_confidence"`

	// PatternsFile replaces the built-in pattern library when set.
	PatternsFile string `json:"patterns_file,omitempty" yaml:"patterns_file,omitempty" mapstructure:"patterns_file"`
}

// ExtractionConfig holds settings for identifier extraction.
type ExtractionConfig struct {
	// Mode is "strict" (context-anchored only) or "loose" (adds tolerant forms).
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`

	// TitleContext is the context window, in characters on each side, for
	// mentions found in a title (default 50).
	TitleContext int `json:"title_context" yaml:"title_context" mapstructure:"title_context"`

	// AbstractContext is the context window for abstract mentions (default 100).
	AbstractContext int `json:"abstract_context" yaml:"abstract_context" mapstructure:"abstract_context"`
}

// CandidateConfig bounds the heuristic condition/date candidate search.
type CandidateConfig struct {
	// MaxTerms is the number of condition terms searched (default 5).
	MaxTerms int `json:"max_terms" yaml:"max_terms" mapstructure:"max_terms"`

	// MaxResults caps the candidate list (default 50).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// YearsBefore and YearsAfter widen the publication year window around the
	// trial start year (defaults 1 and 3).
	YearsBefore int `json:"years_before" yaml:"years_before" mapstructure:"years_before"`
	YearsAfter  int `json:"years_after" yaml:"years_after" mapstructure:"years_after"`
}

// BatchConfig holds settings for batch runs.
type BatchConfig struct {
	// Workers is the number of papers processed concurrently (default 1).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is debug, info, warn, or error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is console or json (default console).
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// OutputPaths are zap sink URLs or file paths (default stderr).
	OutputPaths []string `json:"output_paths,omitempty" yaml:"output_paths,omitempty" mapstructure:"output_paths"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile path written after batch runs.
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty" mapstructure:"textfile"`
}

// DatabaseConfig locates the local store.
type DatabaseConfig struct {
	// Path is the SQLite database file (default "data/evidence.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Config groups all component configurations.
type Config struct {
	Database   DatabaseConfig   `json:"database" yaml:"database" mapstructure:"database"`
	Registry   RegistryConfig   `json:"registry" yaml:"registry" mapstructure:"registry"`
	Trials     TrialCacheConfig `json:"trials" yaml:"trials" mapstructure:"trials"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier" mapstructure:"classifier"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Candidates CandidateConfig  `json:"candidates" yaml:"candidates" mapstructure:"candidates"`
	Batch      BatchConfig      `json:"batch" yaml:"batch" mapstructure:"batch"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}
