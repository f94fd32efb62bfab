// Package config loads Project Hunt configuration from defaults, an optional
// YAML file, a .env file and PROJECTHUNT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/donovan0902/project-hunt/internal/embedder"
	"github.com/donovan0902/project-hunt/internal/index"
	"github.com/donovan0902/project-hunt/internal/logging"
	"github.com/donovan0902/project-hunt/internal/submission"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig      `koanf:"server"`
	Storage    StorageConfig     `koanf:"storage"`
	Embedder   embedder.Config   `koanf:"embedder"`
	Index      index.Config      `koanf:"index"`
	Ranker     RankerConfig      `koanf:"ranker"`
	Submission submission.Config `koanf:"submission"`
	Indexer    IndexerConfig     `koanf:"indexer"`
	Logging    logging.Config    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StorageConfig holds entry store settings.
type StorageConfig struct {
	Path string `koanf:"path"` // SQLite database file, ":memory:" for tests
}

// RankerConfig holds search response cache settings.
type RankerConfig struct {
	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

// IndexerConfig holds backfill worker settings.
type IndexerConfig struct {
	Workers   int `koanf:"workers"`
	BatchSize int `koanf:"batch_size"`
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "projecthunt.db"
	}

	if c.Embedder.Provider == "" {
		c.Embedder.Provider = embedder.ProviderLocal
	}
	if c.Embedder.CacheSize == 0 {
		c.Embedder.CacheSize = 1000
	}

	if c.Index.Backend == "" {
		c.Index.Backend = index.BackendSQLite
	}
	if c.Index.Namespace == "" {
		c.Index.Namespace = index.DefaultNamespace
	}
	if c.Index.Timeout == 0 {
		c.Index.Timeout = index.DefaultTimeout
	}

	if c.Ranker.CacheSize == 0 {
		c.Ranker.CacheSize = 100
	}
	if c.Ranker.CacheTTL == 0 {
		c.Ranker.CacheTTL = time.Minute
	}

	if c.Submission.MinSummaryLength == 0 {
		c.Submission.MinSummaryLength = submission.DefaultMinSummaryLength
	}
	if c.Submission.Namespace == "" {
		c.Submission.Namespace = c.Index.Namespace
	}

	if c.Indexer.BatchSize == 0 {
		c.Indexer.BatchSize = 100
	}

	if c.Logging.Level == "" {
		c.Logging.Level = logging.DefaultConfig().Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = logging.DefaultConfig().Format
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}

	switch strings.ToLower(c.Embedder.Provider) {
	case embedder.ProviderLocal, embedder.ProviderOllama:
	case embedder.ProviderJina, embedder.ProviderOpenAI:
		if c.Embedder.APIKey == "" {
			errs = append(errs, fmt.Errorf("embedder.api_key is required for provider %s", c.Embedder.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedder.provider %q", c.Embedder.Provider))
	}
	if c.Embedder.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("embedder.requests_per_second cannot be negative"))
	}

	switch strings.ToLower(c.Index.Backend) {
	case index.BackendSQLite, index.BackendChromem:
	case index.BackendQdrant:
		if c.Index.Qdrant.Port < 0 || c.Index.Qdrant.Port > 65535 {
			errs = append(errs, fmt.Errorf("index.qdrant.port out of range: %d", c.Index.Qdrant.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown index.backend %q", c.Index.Backend))
	}
	if c.Index.Timeout < 0 {
		errs = append(errs, errors.New("index.timeout cannot be negative"))
	}

	if c.Ranker.CacheSize < 0 {
		errs = append(errs, errors.New("ranker.cache_size cannot be negative"))
	}
	if c.Submission.MinSummaryLength < 0 {
		errs = append(errs, errors.New("submission.min_summary_length cannot be negative"))
	}
	if c.Indexer.Workers < 0 {
		errs = append(errs, errors.New("indexer.workers cannot be negative"))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
