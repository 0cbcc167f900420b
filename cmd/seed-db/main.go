package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/auth"
	"github.com/xenking/storefront-orders/internal/domain/customer"
	"github.com/xenking/storefront-orders/internal/domain/loyalty"
	"github.com/xenking/storefront-orders/internal/domain/product"
	"github.com/xenking/storefront-orders/internal/storage/postgres"
)

// demoCustomer is a seeded account. Spent is the historical spend the
// account starts with.
type demoCustomer struct {
	name, email, password string
	role                  customer.Role
	spent                 string
}

var demoCustomers = []demoCustomer{
	{name: "Admin", email: "admin@shop.local", password: "admin123", role: customer.RoleAdmin, spent: "0"},
	{name: "Maria Regular", email: "maria@shop.local", password: "maria123", role: customer.RoleRegular, spent: "0"},
	{name: "João Quase Fiel", email: "joao@shop.local", password: "joao1234", role: customer.RoleRegular, spent: "990"},
	{name: "Ana Fiel", email: "ana@shop.local", password: "ana12345", role: customer.RoleRegular, spent: "1500"},
}

// setStandingSQL backdates a demo customer's history. Order placement is the
// only other writer of these columns.
const setStandingSQL = `UPDATE customers SET total_spent = $2, loyal = $3 WHERE id = $1`

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or SHOP_SEED_API_KEY env); skipped when empty")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewDevelopment()
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
	if apiKey == "" {
		apiKey = os.Getenv("SHOP_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}

	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile, apiKey, pepper string) error {
	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL, postgres.PoolConfig{})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCustomers(ctx, lg, pool); err != nil {
		return errors.Wrap(err, "seed customers")
	}
	if err := seedProducts(ctx, lg, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if apiKey != "" {
		if err := seedAPIKey(ctx, lg, pool, apiKey, pepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	}
	return nil
}

func seedCustomers(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool) error {
	svc := customer.NewService(postgres.NewCustomerRepository(pool))
	policy := loyalty.Default()

	for _, d := range demoCustomers {
		c, err := svc.Register(ctx, customer.Registration{
			Name:     d.name,
			Email:    d.email,
			Password: d.password,
			Role:     d.role,
		})
		if errors.Is(err, customer.ErrEmailTaken) {
			lg.Info("Customer exists", zap.String("email", d.email))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "register %s", d.email)
		}

		spent := decimal.RequireFromString(d.spent)
		if !spent.IsZero() {
			if _, err := pool.Exec(ctx, setStandingSQL, c.ID, spent, policy.Qualifies(spent)); err != nil {
				return errors.Wrapf(err, "set standing of %s", d.email)
			}
		}
		lg.Info("Created customer",
			zap.Int64("id", c.ID),
			zap.String("email", c.Email),
			zap.Stringer("total_spent", spent),
		)
	}
	return nil
}

func seedProducts(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}
	drafts, err := parseDrafts(data)
	if err != nil {
		return errors.Wrap(err, "parse products JSON")
	}
	lg.Info("Seeding products", zap.String("path", path), zap.Int("count", len(drafts)))

	svc := product.NewService(postgres.NewProductRepository(pool))
	catalog := postgres.NewCatalog(pool)
	for _, d := range drafts {
		if err := d.Validate(); err != nil {
			return errors.Wrapf(err, "product %q", d.Name)
		}
		exists, err := catalog.Exists(ctx, postgres.KeyOf(product.Product{Name: d.Name, Category: d.Category}))
		if err != nil {
			return err
		}
		if exists {
			lg.Info("Product exists", zap.String("name", d.Name))
			continue
		}
		p, err := svc.Create(ctx, d)
		if err != nil {
			return errors.Wrapf(err, "create product %q", d.Name)
		}
		lg.Info("Created product", zap.Int64("id", p.ID), zap.String("name", p.Name))
	}
	return nil
}

// parseDrafts reads a JSON array of product objects.
func parseDrafts(data []byte) ([]product.Draft, error) {
	var drafts []product.Draft
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Draft
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "name":
				p.Name, err = d.Str()
			case "description":
				p.Description, err = d.Str()
			case "image":
				p.Image, err = d.Str()
			case "category":
				p.Category, err = d.Str()
			case "price":
				var s string
				if s, err = d.Str(); err == nil {
					p.Price, err = decimal.NewFromString(s)
				}
			case "stock":
				p.Stock, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		drafts = append(drafts, p)
		return nil
	})
	return drafts, err
}

func seedAPIKey(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool, apiKey, pepper string) error {
	if pepper == "" {
		return errors.New("api key pepper is required to seed an api key")
	}
	hash := auth.HashKey([]byte(pepper), apiKey)
	if err := postgres.NewAPIKeyRepository(pool).Create(ctx, hash, "seed", []string{auth.ScopeReadCustomers}); err != nil {
		return err
	}
	lg.Info("Seeded API key", zap.String("name", "seed"), zap.Strings("scopes", []string{auth.ScopeReadCustomers}))
	return nil
}
