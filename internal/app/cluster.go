package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/cli"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/clustering"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/config"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/db"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/logging"
)

func runCluster(args []string) int {
	fs := flag.NewFlagSet("cluster", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	limit := fs.Int("limit", 0, "Maximum unclustered articles per batch (0 uses the configured batch size)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit < 0 {
		fmt.Fprintln(os.Stderr, "--limit must be >= 0")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("cluster command failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc := clustering.NewService(pool, newEmbedder(cfg), logger, clusterParams(cfg))
	result, err := svc.RunBatch(ctx, *limit)
	if err != nil {
		logger.Error().Err(err).Int("limit", *limit).Msg("clustering batch failed")
		fmt.Fprintf(os.Stderr, "Clustering failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"cluster processed=%d created=%d merged=%d duplicates_prevented=%d added_to_existing=%d articles_assigned=%d\n",
		result.ArticlesProcessed,
		result.ClustersCreated,
		result.ClustersMerged,
		result.DuplicatesPrevented,
		result.AddedToExisting,
		result.ArticlesAssigned,
	)
	return 0
}

func newEmbedder(cfg *config.Config) *clustering.HTTPEmbedder {
	return clustering.NewHTTPEmbedder(cfg.EmbedEndpoint, cfg.EmbedBatchSize, cfg.EmbedMaxLength, cfg.EmbedRequestTimeout)
}

func clusterParams(cfg *config.Config) clustering.Params {
	return clustering.Params{
		SimilarityThreshold: cfg.SimilarityThreshold,
		MinClusterSize:      cfg.MinClusterSize,
		MaxClusterSize:      cfg.MaxClusterSize,
		TimeWindow:          time.Duration(cfg.TimeWindowHours) * time.Hour,
		CoherenceThreshold:  cfg.CoherenceThreshold,
		DuplicateThreshold:  cfg.DuplicateThreshold,
		BatchSize:           cfg.BatchSize,
		ExistingWindow:      time.Duration(cfg.ExistingClusterWindowDays) * 24 * time.Hour,
		DedupLookback:       time.Duration(cfg.DedupLookbackDays) * 24 * time.Hour,
		CacheTTL:            cfg.CacheTTL,
	}
}
