package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, UPSTREAM_API_KEY, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// Environment variables use underscore separator and are uppercased; the
// first underscore splits section from field:
//
//	SERVER_PORT             -> server.port
//	UPSTREAM_API_KEY        -> upstream.api_key
//	DISPATCH_BASE_TIMEOUT   -> dispatch.base_timeout
//	HEALTH_RETRY_INTERVAL   -> health.retry_interval
//
// The endpoints list may be supplied as a comma-separated value:
//
//	UPSTREAM_ENDPOINTS=http://a:9999/v1/chat/completions,http://b:9999/v1/chat/completions
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma-separated endpoint list from the environment arrives as a
	// single-element slice.
	if len(cfg.Upstream.Endpoints) == 1 && strings.Contains(cfg.Upstream.Endpoints[0], ",") {
		parts := strings.Split(cfg.Upstream.Endpoints[0], ",")
		cfg.Upstream.Endpoints = cfg.Upstream.Endpoints[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Upstream.Endpoints = append(cfg.Upstream.Endpoints, p)
			}
		}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envTransform maps environment variable names to config keys.
// The first underscore separates section from field; remaining underscores
// stay in the field name (SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout).
func envTransform(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	switch parts[0] {
	case "server", "upstream", "dispatch", "health", "enrich", "embeddings", "materials", "logging":
		return parts[0] + "." + parts[1]
	default:
		// Unrelated environment variables must not leak into the config tree.
		return ""
	}
}
