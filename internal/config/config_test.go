package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Environment:               "local",
		LogLevel:                  "info",
		DatabaseURL:               "postgres://localhost/cluster",
		DBMinConns:                1,
		DBMaxConns:                8,
		OpsListenAddr:             ":8087",
		EmbedEndpoint:             "http://127.0.0.1:8844/embed",
		EmbedBatchSize:            50,
		EmbedMaxLength:            512,
		EmbedRequestTimeout:       45 * time.Second,
		SimilarityThreshold:       0.75,
		MinClusterSize:            2,
		MaxClusterSize:            12,
		TimeWindowHours:           72,
		CoherenceThreshold:        0.65,
		DuplicateThreshold:        0.75,
		BatchSize:                 50,
		ExistingClusterWindowDays: 3,
		DedupLookbackDays:         14,
		CacheTTL:                  time.Hour,
	}
}

func TestConfigValidate_OK(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestConfigValidate_Rejections(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"missing database url":     func(c *Config) { c.DatabaseURL = " " },
		"min conns above max":      func(c *Config) { c.DBMinConns = 9 },
		"similarity out of range":  func(c *Config) { c.SimilarityThreshold = 1.5 },
		"coherence out of range":   func(c *Config) { c.CoherenceThreshold = 0 },
		"min cluster size too low": func(c *Config) { c.MinClusterSize = 1 },
		"max below min":            func(c *Config) { c.MaxClusterSize = 1 },
		"zero time window":         func(c *Config) { c.TimeWindowHours = 0 },
		"zero batch size":          func(c *Config) { c.BatchSize = 0 },
		"zero cache ttl":           func(c *Config) { c.CacheTTL = 0 },
		"zero embed batch":         func(c *Config) { c.EmbedBatchSize = 0 },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
