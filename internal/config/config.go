package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"./dev.db"`

	SessionSecret string `env:"SESSION_SECRET"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	RateTablePath  string  `env:"RATE_TABLE_PATH"`
	DefaultTaxRate float64 `env:"DEFAULT_TAX_RATE" envDefault:"0.0825"`

	MarketAPIURL     string        `env:"MARKET_API_URL"`
	MarketAPIKey     string        `env:"MARKET_API_KEY"`
	MarketTimeout    time.Duration `env:"MARKET_TIMEOUT" envDefault:"5s"`
	MarketMaxElapsed time.Duration `env:"MARKET_MAX_ELAPSED" envDefault:"10s"`

	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	WarmupSchedule string        `env:"WARMUP_SCHEDULE"`
	WarmupRegions  []string      `env:"WARMUP_REGIONS" envSeparator:","`

	EmailAPIURL  string `env:"EMAIL_API_URL" envDefault:"https://api.resend.com"`
	EmailAPIKey  string `env:"EMAIL_API_KEY"`
	EmailFrom    string `env:"EMAIL_FROM" envDefault:"estimates@example.com"`
	CompanyName  string `env:"COMPANY_NAME" envDefault:"Professional Contractors"`
	CompanyPhone string `env:"COMPANY_PHONE"`

	DocumentsBucket string `env:"DOCUMENTS_BUCKET"`
	DocumentsDir    string `env:"DOCUMENTS_DIR" envDefault:"./documents"`
	AWSRegion       string `env:"AWS_REGION" envDefault:"us-east-1"`

	// DocumentsBaseURL is the public address of DocumentsDir; see DocumentsURL.
	DocumentsBaseURL    string        `env:"DOCUMENTS_BASE_URL"`
	DocumentsLinkExpiry time.Duration `env:"DOCUMENTS_LINK_EXPIRY" envDefault:"168h"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads .env (if present) and the process environment into a Config.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres (got %q)", c.DBDriver)
	}
	if c.DefaultTaxRate < 0 || c.DefaultTaxRate >= 1 {
		return fmt.Errorf("DEFAULT_TAX_RATE must be a fraction in [0, 1) (got %v)", c.DefaultTaxRate)
	}
	// Presigned S3 links cannot outlive seven days.
	if c.DocumentsLinkExpiry <= 0 || c.DocumentsLinkExpiry > 7*24*time.Hour {
		return fmt.Errorf("DOCUMENTS_LINK_EXPIRY must be in (0, 168h] (got %v)", c.DocumentsLinkExpiry)
	}
	return nil
}

// DocumentsURL is the public base URL of locally stored documents. It defaults to
// the server's own /documents route on localhost.
func (c Config) DocumentsURL() string {
	if c.DocumentsBaseURL != "" {
		return c.DocumentsBaseURL
	}
	return "http://localhost:" + c.Port + "/documents"
}

// IsDev reports whether the app runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "dev"
}

// MissingSecrets lists the unset variables main should warn about.
func (c Config) MissingSecrets() []string {
	var missing []string
	if c.AdminEmail == "" {
		missing = append(missing, "ADMIN_EMAIL")
	}
	if c.AdminPassword == "" {
		missing = append(missing, "ADMIN_PASSWORD")
	}
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	return missing
}
