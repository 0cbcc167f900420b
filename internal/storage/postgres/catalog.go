package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-orders/internal/domain/product"
)

const (
	catalogKeysSQL = `SELECT lower(name), lower(category) FROM products`

	catalogKeyExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM products WHERE lower(name) = $1 AND lower(category) = $2)`
)

var productCopyColumns = []string{"name", "description", "image", "category", "price", "stock"}

// CatalogKey identifies a product for de-duplication: name and category,
// case-folded.
type CatalogKey struct {
	Name     string
	Category string
}

// KeyOf returns the de-duplication key of p.
func KeyOf(p product.Product) CatalogKey {
	return CatalogKey{Name: strings.ToLower(p.Name), Category: strings.ToLower(p.Category)}
}

// String joins the key parts with a separator that cannot occur in either.
func (k CatalogKey) String() string {
	return k.Name + "\x00" + k.Category
}

// Catalog provides bulk operations used by the catalog importer.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog returns a Catalog that uses the given pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// EachKey streams the key of every stored product to fn.
func (c *Catalog) EachKey(ctx context.Context, fn func(CatalogKey)) error {
	rows, err := c.pool.Query(ctx, catalogKeysSQL)
	if err != nil {
		return fmt.Errorf("querying catalog keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k CatalogKey
		if err := rows.Scan(&k.Name, &k.Category); err != nil {
			return fmt.Errorf("scanning catalog key: %w", err)
		}
		fn(k)
	}
	return rows.Err()
}

// Exists reports whether a product with key k is stored.
func (c *Catalog) Exists(ctx context.Context, k CatalogKey) (bool, error) {
	var ok bool
	if err := c.pool.QueryRow(ctx, catalogKeyExistsSQL, k.Name, k.Category).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking catalog key %q/%q: %w", k.Name, k.Category, err)
	}
	return ok, nil
}

// CopyProducts bulk-inserts products with COPY and returns the row count.
func (c *Catalog) CopyProducts(ctx context.Context, products []product.Product) (int64, error) {
	n, err := c.pool.CopyFrom(ctx,
		pgx.Identifier{"products"},
		productCopyColumns,
		pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
			p := products[i]
			return []any{p.Name, nullable(p.Description), nullable(p.Image), p.Category, p.Price, p.Stock}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copying %d products: %w", len(products), err)
	}
	return n, nil
}
