package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donovan0902/project-hunt/internal/index"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "projecthunt.db", cfg.Storage.Path)
	assert.Equal(t, "local", cfg.Embedder.Provider)
	assert.Equal(t, index.BackendSQLite, cfg.Index.Backend)
	assert.Equal(t, index.DefaultNamespace, cfg.Index.Namespace)
	assert.Equal(t, index.DefaultTimeout, cfg.Index.Timeout)
	assert.Equal(t, 200, cfg.Submission.MinSummaryLength)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadYAML(t *testing.T) {
	content := []byte(`
server:
  port: 9000
storage:
  path: /tmp/hunt.db
index:
  backend: qdrant
  timeout: 3s
  qdrant:
    host: qdrant.internal
    port: 6334
ranker:
  cache_ttl: 30s
submission:
  min_summary_length: 50
logging:
  format: console
`)
	cfg, err := LoadBytes(content)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/tmp/hunt.db", cfg.Storage.Path)
	assert.Equal(t, "qdrant", cfg.Index.Backend)
	assert.Equal(t, 3*time.Second, cfg.Index.Timeout)
	assert.Equal(t, "qdrant.internal", cfg.Index.Qdrant.Host)
	assert.Equal(t, 30*time.Second, cfg.Ranker.CacheTTL)
	assert.Equal(t, 50, cfg.Submission.MinSummaryLength)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("PROJECTHUNT_SERVER_PORT", "9100")
	t.Setenv("PROJECTHUNT_EMBEDDER_PROVIDER", "jina")
	t.Setenv("PROJECTHUNT_EMBEDDER_API_KEY", "secret")
	t.Setenv("PROJECTHUNT_INDEX_QDRANT_HOST", "from-env")

	cfg, err := LoadBytes([]byte("server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "jina", cfg.Embedder.Provider)
	assert.Equal(t, "secret", cfg.Embedder.APIKey)
	assert.Equal(t, "from-env", cfg.Index.Qdrant.Host)
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"PROJECTHUNT_SERVER_PORT":                   "server.port",
		"PROJECTHUNT_EMBEDDER_API_KEY":              "embedder.api_key",
		"PROJECTHUNT_INDEX_CHROMEM_PATH":            "index.chromem_path",
		"PROJECTHUNT_INDEX_QDRANT_USE_TLS":          "index.qdrant.use_tls",
		"PROJECTHUNT_SUBMISSION_MIN_SUMMARY_LENGTH": "submission.min_summary_length",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown provider", func(c *Config) { c.Embedder.Provider = "word2vec" }},
		{"remote without key", func(c *Config) { c.Embedder.Provider = "openai" }},
		{"unknown backend", func(c *Config) { c.Index.Backend = "faiss" }},
		{"negative cache", func(c *Config) { c.Ranker.CacheSize = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			require.NoError(t, cfg.Validate())

			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  path: file.db\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file.db", cfg.Storage.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := LoadBytes([]byte("server: [unclosed"))
	assert.Error(t, err)
}
