package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	t.Run("parses duration strings", func(t *testing.T) {
		var d Duration
		require.NoError(t, d.UnmarshalText([]byte("45s")))
		assert.Equal(t, 45*time.Second, d.Duration())
	})

	t.Run("rejects negative durations", func(t *testing.T) {
		var d Duration
		assert.Error(t, d.UnmarshalText([]byte("-5s")))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		var d Duration
		assert.Error(t, d.UnmarshalText([]byte("soon")))
	})

	t.Run("round-trips through text", func(t *testing.T) {
		d := Duration(90 * time.Second)
		text, err := d.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, "1m30s", string(text))
	})
}

func TestSecret(t *testing.T) {
	s := Secret("hunter2")

	t.Run("redacted in string contexts", func(t *testing.T) {
		assert.Equal(t, "[REDACTED]", s.String())
		assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
		assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	})

	t.Run("redacted in JSON", func(t *testing.T) {
		data, err := json.Marshal(s)
		require.NoError(t, err)
		assert.Equal(t, `"[REDACTED]"`, string(data))
	})

	t.Run("value accessor returns the secret", func(t *testing.T) {
		assert.Equal(t, "hunter2", s.Value())
		assert.True(t, s.IsSet())
	})

	t.Run("empty secret stays empty", func(t *testing.T) {
		var empty Secret
		assert.Equal(t, "", empty.String())
		assert.False(t, empty.IsSet())

		data, err := json.Marshal(empty)
		require.NoError(t, err)
		assert.Equal(t, `""`, string(data))
	})

	t.Run("unmarshals raw values", func(t *testing.T) {
		var parsed Secret
		require.NoError(t, parsed.UnmarshalText([]byte("api-key")))
		assert.Equal(t, "api-key", parsed.Value())
	})
}
