package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/analysis"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/logger"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `envconfig:"SERVER"`
	Database     DatabaseConfig     `envconfig:"DB"`
	CORS         CORSConfig         `envconfig:"CORS"`
	Logging      LoggingConfig      `envconfig:"LOG"`
	Optimisation OptimisationConfig `envconfig:"OPTIMISATION"`
	MarketData   MarketDataConfig   `envconfig:"MARKET_DATA"`
	Security     SecurityConfig     `envconfig:"INTERNAL"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string `split_words:"true" default:"5001"`
	Host string `split_words:"true" default:"localhost"`
	Addr string `ignored:"true"` // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration.
// Path is a file path for sqlite and a connection string for postgres.
type DatabaseConfig struct {
	Driver string `split_words:"true" default:"sqlite"`
	Path   string `split_words:"true" default:"./data/portfolio_analysis.db"`
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string `split_words:"true" default:"http://localhost:3000,http://localhost"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level string `split_words:"true" default:"info"`
	File  string `split_words:"true"`
}

// OptimisationConfig controls the efficient frontier sweep
type OptimisationConfig struct {
	Samples       int           `split_words:"true" default:"200"`
	GammaMax      float64       `split_words:"true" default:"1000"`
	GammaMin      float64       `split_words:"true" default:"0.001"`
	Workers       int           `split_words:"true" default:"4"`
	MaxIterations int           `split_words:"true" default:"20000"`
	Tolerance     float64       `split_words:"true" default:"1e-10"`
	RiskFreeRate  float64       `split_words:"true" default:"4.29"`
	Timeout       time.Duration `split_words:"true" default:"30s"`
	Period        string        `split_words:"true" default:"monthly"`
}

// MarketDataConfig controls upstream price fetching and the scheduled refresh
type MarketDataConfig struct {
	RefreshCron    string        `split_words:"true" default:"0 6 * * *"`
	RefreshEnabled bool          `split_words:"true" default:"true"`
	HTTPTimeout    time.Duration `split_words:"true" default:"15s"`
}

// SecurityConfig holds the optional internal API key
type SecurityConfig struct {
	APIKey string `split_words:"true"`
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return &config, nil
}

// Validate checks enum-like and range values that envconfig cannot.
func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	period, err := analysis.ParsePeriod(c.Optimisation.Period)
	if err != nil {
		return fmt.Errorf("invalid OPTIMISATION_PERIOD: %w", err)
	}
	if _, ok := period.PeriodsPerYear(); !ok {
		return fmt.Errorf("OPTIMISATION_PERIOD must be daily, weekly or monthly, got %q", period)
	}
	c.Optimisation.Period = string(period)

	if c.Optimisation.Samples <= 0 {
		return fmt.Errorf("OPTIMISATION_SAMPLES must be positive, got %d", c.Optimisation.Samples)
	}
	if c.Optimisation.GammaMin <= 0 || c.Optimisation.GammaMax < c.Optimisation.GammaMin {
		return fmt.Errorf("invalid gamma range [%g, %g]", c.Optimisation.GammaMin, c.Optimisation.GammaMax)
	}
	return nil
}
