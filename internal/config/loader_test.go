package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
upstream:
  endpoints:
    - http://gpu-a:8000/chat/completions
`

func TestLoad(t *testing.T) {
	t.Run("defaults apply over a minimal file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)

		assert.Equal(t, 8090, cfg.Server.Port)
		assert.Equal(t, 12*time.Second, cfg.Dispatch.BaseTimeout.Duration())
		assert.Equal(t, 45*time.Second, cfg.Dispatch.FileTimeout.Duration())
		assert.Equal(t, 5000, cfg.Dispatch.LargeContentThreshold)
		assert.Equal(t, 2, cfg.Dispatch.MaxAttempts)
		assert.Equal(t, 2, cfg.Health.MaxConsecutiveFailures)
		assert.Equal(t, 15*time.Second, cfg.Health.RetryInterval.Duration())
		assert.Equal(t, 60*time.Second, cfg.Health.CheckThreshold.Duration())
		assert.Equal(t, 3, cfg.Enrich.MaxDocuments)
		assert.Equal(t, 2000, cfg.Enrich.MaxCharsPerDoc)
		assert.Equal(t, "lecture_materials", cfg.Materials.Collection)
		assert.Equal(t, 1000, cfg.Materials.ChunkSize)
		assert.Equal(t, 200, cfg.Materials.ChunkOverlap)
		assert.Equal(t, "json", cfg.Logging.Format)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
server:
  port: 9000
dispatch:
  base_timeout: 20s
  max_attempts: 3
upstream:
  api_key: secret-key
  endpoints:
    - http://gpu-a:8000/chat/completions
    - http://gpu-b:8000/chat/completions
`))
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 20*time.Second, cfg.Dispatch.BaseTimeout.Duration())
		assert.Equal(t, 3, cfg.Dispatch.MaxAttempts)
		assert.Len(t, cfg.Upstream.Endpoints, 2)
		assert.Equal(t, "secret-key", cfg.Upstream.APIKey.Value())
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "7070")
		t.Setenv("DISPATCH_BASE_TIMEOUT", "8s")

		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)

		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, 8*time.Second, cfg.Dispatch.BaseTimeout.Duration())
	})

	t.Run("comma-separated endpoints from environment", func(t *testing.T) {
		t.Setenv("UPSTREAM_ENDPOINTS", "http://a:8000/chat/completions, http://b:8000/chat/completions")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, []string{
			"http://a:8000/chat/completions",
			"http://b:8000/chat/completions",
		}, cfg.Upstream.Endpoints)
	})

	t.Run("unrelated environment variables do not leak in", func(t *testing.T) {
		t.Setenv("UPSTREAM_ENDPOINTS", "http://a:8000/chat/completions")
		t.Setenv("PATH_INFO", "should-not-appear")

		_, err := Load("")
		assert.NoError(t, err)
	})

	t.Run("missing endpoints fail validation", func(t *testing.T) {
		_, err := Load(writeConfig(t, `server: {port: 9000}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "endpoint")
	})

	t.Run("invalid endpoint URL fails validation", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
upstream:
  endpoints:
    - "not a url"
`))
		assert.Error(t, err)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yaml")
		assert.Error(t, err)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		_, err := Load(writeConfig(t, "\t not yaml: ["))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Upstream.Endpoints = []string{"http://gpu-a:8000/chat/completions"}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero max attempts", func(t *testing.T) {
		cfg := valid()
		cfg.Dispatch.MaxAttempts = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("overlap not smaller than chunk size", func(t *testing.T) {
		cfg := valid()
		cfg.Materials.ChunkOverlap = cfg.Materials.ChunkSize
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown log format", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Format = "xml"
		assert.Error(t, cfg.Validate())
	})
}
