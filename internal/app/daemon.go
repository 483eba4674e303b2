package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/cli"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/clustering"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/config"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/db"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/httpapi"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/logging"
)

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	interval := fs.Duration("interval", 10*time.Minute, "Delay between clustering batches")
	batchTimeout := fs.Duration("batch-timeout", 5*time.Minute, "Timeout per clustering batch")
	limit := fs.Int("limit", 0, "Maximum unclustered articles per batch (0 uses the configured batch size)")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "Ops server HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "Ops server HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *interval <= 0 {
		fmt.Fprintln(os.Stderr, "--interval must be > 0")
		return 2
	}
	if *batchTimeout <= 0 {
		fmt.Fprintln(os.Stderr, "--batch-timeout must be > 0")
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

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("daemon failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	svc := clustering.NewService(pool, newEmbedder(cfg), logger, clusterParams(cfg))

	srv := httpapi.NewServer(pool, logger, httpapi.Options{
		ListenAddr:      cfg.OpsListenAddr,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	logger.Info().
		Dur("interval", *interval).
		Int("limit", *limit).
		Msg("clustering daemon started")

	runOnce := func() {
		batchCtx, batchCancel := context.WithTimeout(ctx, *batchTimeout)
		defer batchCancel()
		if _, err := svc.RunBatch(batchCtx, *limit); err != nil {
			logger.Error().Err(err).Msg("clustering batch failed")
		}
	}

	runOnce()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			runOnce()
		}
	}

	if err := <-serverErr; err != nil {
		logger.Error().Err(err).Msg("ops server failed")
		return 1
	}
	logger.Info().Msg("clustering daemon stopped")
	return 0
}
