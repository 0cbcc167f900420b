package main

import (
	"bufio"
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-orders/internal/domain/product"
	"github.com/xenking/storefront-orders/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
	maxLineBytes  = 1 << 20
)

// catalog is the storage the importer needs; *postgres.Catalog implements it.
type catalog interface {
	EachKey(ctx context.Context, fn func(postgres.CatalogKey)) error
	Exists(ctx context.Context, k postgres.CatalogKey) (bool, error)
	CopyProducts(ctx context.Context, products []product.Product) (int64, error)
}

type stats struct {
	read       int64
	inserted   int64
	duplicates int64
	invalid    int64
}

// importer streams export files concurrently. Stored keys are pre-filtered
// by a bloom filter and confirmed with an exact lookup; keys claimed during
// this run are tracked exactly.
type importer struct {
	catalog   catalog
	lg        *zap.Logger
	batchSize int

	existing *bloom.BloomFilter

	mu      sync.Mutex
	claimed map[string]struct{}

	read       atomic.Int64
	inserted   atomic.Int64
	duplicates atomic.Int64
	invalid    atomic.Int64
}

func newImporter(c catalog, lg *zap.Logger, batchSize int) *importer {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &importer{
		catalog:   c,
		lg:        lg,
		batchSize: batchSize,
		claimed:   make(map[string]struct{}),
	}
}

// loadExisting builds the bloom filter over stored catalog keys.
func (imp *importer) loadExisting(ctx context.Context, capacity uint) error {
	if capacity == 0 {
		capacity = 1
	}
	filter := bloom.NewWithEstimates(capacity, bloomFPR)
	var n int
	if err := imp.catalog.EachKey(ctx, func(k postgres.CatalogKey) {
		filter.AddString(k.String())
		n++
	}); err != nil {
		return err
	}
	imp.existing = filter
	imp.lg.Info("Loaded catalog keys", zap.Int("count", n))
	return nil
}

// importFiles processes every file in its own goroutine.
func (imp *importer) importFiles(ctx context.Context, files []string) (stats, error) {
	if imp.existing == nil {
		return stats{}, errors.New("existing keys not loaded")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(func() error {
			if err := imp.importFile(ctx, f); err != nil {
				return errors.Wrapf(err, "import %s", f)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats{}, err
	}

	return stats{
		read:       imp.read.Load(),
		inserted:   imp.inserted.Load(),
		duplicates: imp.duplicates.Load(),
		invalid:    imp.invalid.Load(),
	}, nil
}

func (imp *importer) importFile(ctx context.Context, path string) error {
	batch := make([]product.Product, 0, imp.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := imp.catalog.CopyProducts(ctx, batch)
		if err != nil {
			return err
		}
		imp.inserted.Add(n)
		batch = batch[:0]
		return nil
	}

	var lineNo int64
	err := streamGzFile(ctx, path, func(line []byte) error {
		lineNo++
		if total := imp.read.Add(1); total%progressEvery == 0 {
			imp.lg.Info("Import progress", zap.Int64("read", total))
		}

		p, err := parseLine(line)
		if err != nil {
			imp.invalid.Add(1)
			imp.lg.Warn("Skipping invalid line",
				zap.String("file", path),
				zap.Int64("line", lineNo),
				zap.Error(err),
			)
			return nil
		}

		fresh, err := imp.claim(ctx, postgres.KeyOf(p))
		if err != nil {
			return err
		}
		if !fresh {
			imp.duplicates.Add(1)
			return nil
		}

		batch = append(batch, p)
		if len(batch) >= imp.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// claim reports whether k is neither stored nor already claimed in this run,
// and claims it if so.
func (imp *importer) claim(ctx context.Context, k postgres.CatalogKey) (bool, error) {
	key := k.String()

	imp.mu.Lock()
	if _, ok := imp.claimed[key]; ok {
		imp.mu.Unlock()
		return false, nil
	}
	imp.claimed[key] = struct{}{}
	imp.mu.Unlock()

	if !imp.existing.TestString(key) {
		return true, nil
	}
	exists, err := imp.catalog.Exists(ctx, k)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// parseLine decodes one export record and applies product validation.
func parseLine(line []byte) (product.Product, error) {
	var (
		d        product.Draft
		hasPrice bool
	)
	err := jx.DecodeBytes(line).Obj(func(dec *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			d.Name, err = dec.Str()
		case "description":
			d.Description, err = dec.Str()
		case "image":
			d.Image, err = dec.Str()
		case "category":
			d.Category, err = dec.Str()
		case "price":
			d.Price, err = decodePrice(dec)
			hasPrice = true
		case "stock":
			d.Stock, err = dec.Int()
		default:
			err = dec.Skip()
		}
		return err
	})
	if err != nil {
		return product.Product{}, errors.Wrap(err, "decode")
	}
	if !hasPrice {
		return product.Product{}, errors.New("price is required")
	}
	if err := d.Validate(); err != nil {
		return product.Product{}, err
	}
	return product.Product{
		Name:        d.Name,
		Description: d.Description,
		Image:       d.Image,
		Category:    d.Category,
		Price:       d.Price,
		Stock:       d.Stock,
	}, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty
// line. The slice passed to fn is only valid during the call.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
