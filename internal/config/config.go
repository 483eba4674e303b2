package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"CLUSTERD_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"CLUSTERD_DB_MAX_CONNS" default:"8"`

	OpsListenAddr string `envconfig:"OPS_LISTEN_ADDR" default:":8087"`

	EmbedEndpoint       string        `envconfig:"EMBED_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbedBatchSize      int           `envconfig:"EMBED_BATCH_SIZE" default:"50"`
	EmbedMaxLength      int           `envconfig:"EMBED_MAX_LENGTH" default:"512"`
	EmbedRequestTimeout time.Duration `envconfig:"EMBED_REQUEST_TIMEOUT" default:"45s"`

	SimilarityThreshold       float64       `envconfig:"CLUSTER_SIMILARITY_THRESHOLD" default:"0.75"`
	MinClusterSize            int           `envconfig:"CLUSTER_MIN_SIZE" default:"2"`
	MaxClusterSize            int           `envconfig:"CLUSTER_MAX_SIZE" default:"12"`
	TimeWindowHours           int           `envconfig:"CLUSTER_TIME_WINDOW_HOURS" default:"72"`
	CoherenceThreshold        float64       `envconfig:"CLUSTER_COHERENCE_THRESHOLD" default:"0.65"`
	DuplicateThreshold        float64       `envconfig:"CLUSTER_DUPLICATE_THRESHOLD" default:"0.75"`
	BatchSize                 int           `envconfig:"CLUSTER_BATCH_SIZE" default:"50"`
	ExistingClusterWindowDays int           `envconfig:"CLUSTER_EXISTING_WINDOW_DAYS" default:"3"`
	DedupLookbackDays         int           `envconfig:"CLUSTER_DEDUP_LOOKBACK_DAYS" default:"14"`
	CacheTTL                  time.Duration `envconfig:"CLUSTER_CACHE_TTL" default:"1h"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("CLUSTERD_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("CLUSTERD_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("CLUSTERD_DB_MIN_CONNS (%d) cannot exceed CLUSTERD_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold >= 1 {
		return fmt.Errorf("CLUSTER_SIMILARITY_THRESHOLD must be in (0, 1)")
	}
	if c.CoherenceThreshold <= 0 || c.CoherenceThreshold > 1 {
		return fmt.Errorf("CLUSTER_COHERENCE_THRESHOLD must be in (0, 1]")
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("CLUSTER_DUPLICATE_THRESHOLD must be in (0, 1]")
	}
	if c.MinClusterSize < 2 {
		return fmt.Errorf("CLUSTER_MIN_SIZE must be >= 2")
	}
	if c.MaxClusterSize < c.MinClusterSize {
		return fmt.Errorf("CLUSTER_MAX_SIZE (%d) cannot be below CLUSTER_MIN_SIZE (%d)", c.MaxClusterSize, c.MinClusterSize)
	}
	if c.TimeWindowHours < 1 {
		return fmt.Errorf("CLUSTER_TIME_WINDOW_HOURS must be >= 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("CLUSTER_BATCH_SIZE must be >= 1")
	}
	if c.ExistingClusterWindowDays < 1 {
		return fmt.Errorf("CLUSTER_EXISTING_WINDOW_DAYS must be >= 1")
	}
	if c.DedupLookbackDays < 1 {
		return fmt.Errorf("CLUSTER_DEDUP_LOOKBACK_DAYS must be >= 1")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CLUSTER_CACHE_TTL must be > 0")
	}
	if c.EmbedBatchSize < 1 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be >= 1")
	}
	if c.EmbedRequestTimeout <= 0 {
		return fmt.Errorf("EMBED_REQUEST_TIMEOUT must be > 0")
	}
	return nil
}
