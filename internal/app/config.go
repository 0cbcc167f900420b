package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/loyalty"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SHOP_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Database     DatabaseConfig
	Auth         AuthConfig
	Loyalty      LoyaltyConfig
	Order        OrderConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// DatabaseConfig tunes the connection pool.
type DatabaseConfig struct {
	MaxConns int32 `default:"0" usage:"Max pool connections (0 keeps the pgx default)" flag:"db-max-conns"`
	MinConns int32 `default:"0" usage:"Min idle pool connections" flag:"db-min-conns"`
}

// AuthConfig controls API key protection of customer reads.
type AuthConfig struct {
	Required bool `default:"false" usage:"Require an API key with read_customers scope for customer reads" flag:"auth-required"`
}

// LoyaltyConfig holds the discount policy. Values are decimal strings.
type LoyaltyConfig struct {
	Rate      string `default:"0.10" usage:"Discount rate for loyal customers" flag:"loyalty-rate"`
	Threshold string `default:"1000" usage:"Cumulative spend that makes a customer loyal" flag:"loyalty-threshold"`
}

// Policy parses and validates the loyalty policy.
func (c LoyaltyConfig) Policy() (loyalty.Policy, error) {
	rate, err := decimal.NewFromString(c.Rate)
	if err != nil {
		return loyalty.Policy{}, errors.Wrapf(err, "parse loyalty rate %q", c.Rate)
	}
	threshold, err := decimal.NewFromString(c.Threshold)
	if err != nil {
		return loyalty.Policy{}, errors.Wrapf(err, "parse loyalty threshold %q", c.Threshold)
	}
	p := loyalty.Policy{Rate: rate, Threshold: threshold}
	if err := p.Validate(); err != nil {
		return loyalty.Policy{}, err
	}
	return p, nil
}

// OrderConfig controls order placement.
type OrderConfig struct {
	Timeout time.Duration `default:"10s" usage:"Upper bound for one order placement transaction" flag:"order-timeout"`
}

// RateLimitConfig controls the per-client request budget.
type RateLimitConfig struct {
	Max        int           `default:"100" usage:"Request burst per client, refilled over one window"`
	Window     time.Duration `default:"1m"  usage:"Time to refill a drained client budget"`
	TrustProxy bool          `default:"false" usage:"Key clients by X-Forwarded-For / X-Real-IP" flag:"trust-proxy"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from a .env file (if present), environment
// variables and YAML config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	}, ".env")
}

func loadConfig(ac aconfig.Config, dotenv string) (*Config, error) {
	// Already-set variables win over .env entries.
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Auth.Required && cfg.APIKeyPepper == "" {
		return nil, errors.New("API key pepper is required when auth is enabled: set SHOP_API_KEY_PEPPER")
	}
	if _, err := cfg.Loyalty.Policy(); err != nil {
		return nil, errors.Wrap(err, "loyalty")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
