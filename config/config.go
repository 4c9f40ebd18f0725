// Package config loads service configuration from an optional YAML file, an
// optional .env file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	defaultAddress           = ":8080"
	defaultDBPath            = "charges.db"
	defaultReconcileInterval = time.Hour
	defaultReconcileTimeout  = 10 * time.Minute
	defaultPageSize          = 100
)

// Config holds runtime configuration.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Stripe struct {
		SecretKey     string `yaml:"secret_key"`
		APIBase       string `yaml:"api_base"`
		APIVersion    string `yaml:"api_version"`
		WebhookSecret string `yaml:"webhook_secret"`
	} `yaml:"stripe"`
	Receipts struct {
		SendByDefault bool `yaml:"send_by_default"`
	} `yaml:"receipts"`
	Reconcile struct {
		Interval time.Duration `yaml:"interval"`
		Timeout  time.Duration `yaml:"timeout"`
		PageSize int           `yaml:"page_size"`
	} `yaml:"reconcile"`
}

// Load reads path (skipped when empty), then .env files if present, then
// environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	var cfg Config
	cfg.Server.Address = defaultAddress
	cfg.Database.Path = defaultDBPath
	cfg.Reconcile.Interval = defaultReconcileInterval
	cfg.Reconcile.Timeout = defaultReconcileTimeout
	cfg.Reconcile.PageSize = defaultPageSize
	return cfg
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		cfg.Stripe.SecretKey = v
	}
	if v := os.Getenv("STRIPE_API_BASE"); v != "" {
		cfg.Stripe.APIBase = v
	}
	if v := os.Getenv("STRIPE_API_VERSION"); v != "" {
		cfg.Stripe.APIVersion = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.Stripe.WebhookSecret = v
	}

	if v := os.Getenv("SEND_EMAIL_RECEIPTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse SEND_EMAIL_RECEIPTS: %w", err)
		}
		cfg.Receipts.SendByDefault = b
	}

	if v := os.Getenv("RECONCILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse RECONCILE_INTERVAL: %w", err)
		}
		cfg.Reconcile.Interval = d
	}
	if v := os.Getenv("RECONCILE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse RECONCILE_TIMEOUT: %w", err)
		}
		cfg.Reconcile.Timeout = d
	}
	if v, err := readIntEnv("RECONCILE_PAGE_SIZE"); err != nil {
		return fmt.Errorf("parse RECONCILE_PAGE_SIZE: %w", err)
	} else if v != nil {
		cfg.Reconcile.PageSize = *v
	}
	return nil
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	if c.Stripe.SecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Reconcile.Interval <= 0 {
		return errors.New("reconcile interval must be positive")
	}
	if c.Reconcile.PageSize <= 0 {
		return errors.New("reconcile page size must be positive")
	}
	return nil
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
