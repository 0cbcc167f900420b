// Command catalog-import bulk-loads products from gzip-compressed JSON-lines
// exports, skipping products the catalog already has.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		batchSize   int
		capacity    uint
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog exports")
	flag.StringVar(&pattern, "pattern", "*.jsonl.gz", "glob of export files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 1000, "products per COPY batch")
	flag.UintVar(&capacity, "bloom-capacity", 1_000_000, "expected number of catalog keys")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, filepath.Join(dataDir, pattern), databaseURL, batchSize, capacity); err != nil {
		lg.Fatal("Catalog import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, glob, databaseURL string, batchSize int, capacity uint) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrapf(err, "glob %s", glob)
	}
	if len(files) == 0 {
		lg.Info("No export files found", zap.String("glob", glob))
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL, postgres.PoolConfig{})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	imp := newImporter(postgres.NewCatalog(pool), lg, batchSize)
	if err := imp.loadExisting(ctx, capacity); err != nil {
		return errors.Wrap(err, "load existing catalog keys")
	}
	stats, err := imp.importFiles(ctx, files)
	if err != nil {
		return err
	}

	lg.Info("Catalog import completed",
		zap.Int("files", len(files)),
		zap.Int64("read", stats.read),
		zap.Int64("inserted", stats.inserted),
		zap.Int64("duplicates", stats.duplicates),
		zap.Int64("invalid", stats.invalid),
	)
	return nil
}
