package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func missingEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", secret)

	c, err := Load(missingEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, SourceHTTP, c.Source)
	assert.Equal(t, "https://dummyjson.com", c.UpstreamURL)
	assert.Equal(t, 200, c.UpstreamLimit)
	assert.Equal(t, 100, c.RowHeight)
	assert.Equal(t, 1, c.Overscan)
	assert.Equal(t, 30*time.Minute, c.SessionTTL)
	assert.True(t, c.MetricsEnabled)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SESSION_SECRET="+secret+"\nRECORDS_SOURCE=memory\nROW_HEIGHT=48\n"), 0o600))

	// godotenv does not override variables that are already set.
	t.Setenv("ROW_HEIGHT", "64")
	t.Cleanup(func() {
		os.Unsetenv("SESSION_SECRET")
		os.Unsetenv("RECORDS_SOURCE")
	})

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, c.Source)
	assert.Equal(t, 64, c.RowHeight)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"short secret":     {"SESSION_SECRET": "short"},
		"bad int":          {"SESSION_SECRET": secret, "ROW_HEIGHT": "tall"},
		"bad duration":     {"SESSION_SECRET": secret, "SESSION_TTL": "forever"},
		"unknown source":   {"SESSION_SECRET": secret, "RECORDS_SOURCE": "ftp"},
		"postgres no dsn":  {"SESSION_SECRET": secret, "RECORDS_SOURCE": "postgres"},
		"negative scan":    {"SESSION_SECRET": secret, "OVERSCAN": "-1"},
		"bad metrics flag": {"SESSION_SECRET": secret, "METRICS_ENABLED": "maybe"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load(missingEnv(t))
			assert.Error(t, err)
		})
	}
}
