// Package config provides configuration loading for dispatchd.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. Defaults are tuned for the hosted education
// platform deployment; every timeout and threshold the dispatcher uses is
// a named field here so tests and operators can tune them independently.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the complete dispatchd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Upstream   UpstreamConfig   `koanf:"upstream"`
	Dispatch   DispatchConfig   `koanf:"dispatch"`
	Health     HealthConfig     `koanf:"health"`
	Enrich     EnrichConfig     `koanf:"enrich"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Materials  MaterialsConfig  `koanf:"materials"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// AuthToken guards the internal chat-context and materials endpoints.
	AuthToken Secret `koanf:"auth_token"`
}

// UpstreamConfig describes the candidate AI inference backends.
type UpstreamConfig struct {
	// APIKey is sent as a Bearer token on every completion call.
	APIKey Secret `koanf:"api_key"`
	// Endpoints is the fixed list of chat-completion URLs. Not hot-reloadable.
	Endpoints []string `koanf:"endpoints"`
	// Defaults applied when the inbound request carries no preferences.
	DefaultModel       string  `koanf:"default_model"`
	DefaultTemperature float64 `koanf:"default_temperature"`
	DefaultMaxTokens   int     `koanf:"default_max_tokens"`
	// Rate limiting across all upstream calls.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// DispatchConfig holds timeout classification and retry tunables.
type DispatchConfig struct {
	BaseTimeout           Duration `koanf:"base_timeout"`
	FileTimeout           Duration `koanf:"file_timeout"`
	LargeContentTimeout   Duration `koanf:"large_content_timeout"`
	LargeContentThreshold int      `koanf:"large_content_threshold"`
	MaxAttempts           int      `koanf:"max_attempts"`
	RetryBackoff          Duration `koanf:"retry_backoff"`
}

// HealthConfig holds endpoint health-tracking tunables.
//
// RetryInterval (request-triggered probation) and CheckThreshold (monitor
// staleness) are deliberately separate fields even though they historically
// shared one constant.
type HealthConfig struct {
	MaxConsecutiveFailures int      `koanf:"max_consecutive_failures"`
	RetryInterval          Duration `koanf:"retry_interval"`
	CheckThreshold         Duration `koanf:"check_threshold"`
	ProbeTimeout           Duration `koanf:"probe_timeout"`
}

// EnrichConfig holds RAG context-fetch configuration.
type EnrichConfig struct {
	// BaseURL is the address dispatchd uses for self-referential internal
	// calls (the chat-context endpoint). Defaults to the local server.
	BaseURL        string   `koanf:"base_url"`
	Timeout        Duration `koanf:"timeout"`
	FileTimeout    Duration `koanf:"file_timeout"`
	LargeTimeout   Duration `koanf:"large_timeout"`
	MaxDocuments   int      `koanf:"max_documents"`
	MaxCharsPerDoc int      `koanf:"max_chars_per_doc"`
}

// EmbeddingsConfig holds the embedding API configuration (TEI-compatible).
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// MaterialsConfig holds the lecture-material store configuration.
type MaterialsConfig struct {
	// Path is the chromem persistence directory. Empty means in-memory.
	Path         string `koanf:"path"`
	Collection   string `koanf:"collection"`
	ChunkSize    int    `koanf:"chunk_size"`
	ChunkOverlap int    `koanf:"chunk_overlap"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Upstream.DefaultModel == "" {
		cfg.Upstream.DefaultModel = "default-model"
	}
	if cfg.Upstream.DefaultTemperature == 0 {
		cfg.Upstream.DefaultTemperature = 0.7
	}
	if cfg.Upstream.DefaultMaxTokens == 0 {
		cfg.Upstream.DefaultMaxTokens = 500
	}
	if cfg.Upstream.RequestsPerSecond == 0 {
		cfg.Upstream.RequestsPerSecond = 10
	}
	if cfg.Upstream.Burst == 0 {
		cfg.Upstream.Burst = 5
	}

	if cfg.Dispatch.BaseTimeout == 0 {
		cfg.Dispatch.BaseTimeout = Duration(12 * time.Second)
	}
	if cfg.Dispatch.FileTimeout == 0 {
		cfg.Dispatch.FileTimeout = Duration(45 * time.Second)
	}
	if cfg.Dispatch.LargeContentTimeout == 0 {
		cfg.Dispatch.LargeContentTimeout = Duration(30 * time.Second)
	}
	if cfg.Dispatch.LargeContentThreshold == 0 {
		cfg.Dispatch.LargeContentThreshold = 5000
	}
	if cfg.Dispatch.MaxAttempts == 0 {
		cfg.Dispatch.MaxAttempts = 2
	}
	if cfg.Dispatch.RetryBackoff == 0 {
		cfg.Dispatch.RetryBackoff = Duration(500 * time.Millisecond)
	}

	if cfg.Health.MaxConsecutiveFailures == 0 {
		cfg.Health.MaxConsecutiveFailures = 2
	}
	if cfg.Health.RetryInterval == 0 {
		cfg.Health.RetryInterval = Duration(15 * time.Second)
	}
	if cfg.Health.CheckThreshold == 0 {
		cfg.Health.CheckThreshold = Duration(60 * time.Second)
	}
	if cfg.Health.ProbeTimeout == 0 {
		cfg.Health.ProbeTimeout = Duration(2 * time.Second)
	}

	if cfg.Enrich.BaseURL == "" {
		cfg.Enrich.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Enrich.Timeout == 0 {
		cfg.Enrich.Timeout = Duration(5 * time.Second)
	}
	if cfg.Enrich.FileTimeout == 0 {
		cfg.Enrich.FileTimeout = Duration(10 * time.Second)
	}
	if cfg.Enrich.LargeTimeout == 0 {
		cfg.Enrich.LargeTimeout = Duration(8 * time.Second)
	}
	if cfg.Enrich.MaxDocuments == 0 {
		cfg.Enrich.MaxDocuments = 3
	}
	if cfg.Enrich.MaxCharsPerDoc == 0 {
		cfg.Enrich.MaxCharsPerDoc = 2000
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.Materials.Collection == "" {
		cfg.Materials.Collection = "lecture_materials"
	}
	if cfg.Materials.ChunkSize == 0 {
		cfg.Materials.ChunkSize = 1000
	}
	if cfg.Materials.ChunkOverlap == 0 {
		cfg.Materials.ChunkOverlap = 200
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if len(c.Upstream.Endpoints) == 0 {
		return errors.New("at least one upstream endpoint is required")
	}
	for _, ep := range c.Upstream.Endpoints {
		u, err := url.Parse(ep)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid upstream endpoint URL: %q", ep)
		}
	}

	if c.Dispatch.MaxAttempts < 1 {
		return errors.New("dispatch max attempts must be at least 1")
	}
	if c.Health.MaxConsecutiveFailures < 1 {
		return errors.New("max consecutive failures must be at least 1")
	}
	if c.Materials.ChunkOverlap >= c.Materials.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			c.Materials.ChunkOverlap, c.Materials.ChunkSize)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	return nil
}
