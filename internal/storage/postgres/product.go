package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-orders/internal/domain/product"
)

const (
	productColumns = `id, name, description, image, category, price, stock, created_at`

	createProductSQL = `INSERT INTO products (name, description, image, category, price, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a product and fills in its ID and CreatedAt.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, createProductSQL,
		p.Name, nullable(p.Description), nullable(p.Image), p.Category, p.Price, p.Stock,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	return nil
}

// List returns products matching filter ordered by ID.
func (r *ProductRepository) List(ctx context.Context, filter product.Filter) ([]product.Product, error) {
	query, args := buildProductQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s as a literal substring.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// buildProductQuery appends one placeholder condition per set criterion.
func buildProductQuery(f product.Filter) (string, []any) {
	if f.Empty() {
		return listProductsSQL + " ORDER BY id", nil
	}

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if f.Name != "" {
		add("name ILIKE ?", containsPattern(f.Name))
	}
	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.MaxPrice.Valid {
		add("price <= ?", f.MaxPrice.Decimal)
	}
	if f.Description != "" {
		add("description ILIKE ?", containsPattern(f.Description))
	}

	var b strings.Builder
	b.WriteString(listProductsSQL)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY id")
	return b.String(), args
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p           product.Product
		description *string
		image       *string
	)
	err := row.Scan(
		&p.ID, &p.Name, &description, &image, &p.Category,
		&p.Price, &p.Stock, &p.CreatedAt,
	)
	p.Description = deref(description)
	p.Image = deref(image)
	return p, err
}
