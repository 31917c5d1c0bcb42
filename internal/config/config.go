// Package config loads layered configuration: struct defaults, an optional
// YAML file, then EVENTSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "EVENTSYNC_"

type Upstream struct {
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	PageSize  int           `koanf:"page_size"`
	MaxPages  int           `koanf:"max_pages"`
	Timeout   time.Duration `koanf:"timeout"`
	PageDelay time.Duration `koanf:"page_delay"`
}

type Store struct {
	DSN string `koanf:"dsn"`
}

type Market struct {
	Country string `koanf:"country"`
	City    string `koanf:"city"`
}

type Attribution struct {
	BusinessID string `koanf:"business_id"`
	UserID     string `koanf:"user_id"`
}

type Sync struct {
	Interval   time.Duration `koanf:"interval"`
	RunOnStart bool          `koanf:"run_on_start"`
	BatchSize  int           `koanf:"batch_size"`
}

type Metrics struct {
	Addr string `koanf:"addr"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type Config struct {
	Upstream    Upstream    `koanf:"upstream"`
	Store       Store       `koanf:"store"`
	Market      Market      `koanf:"market"`
	Attribution Attribution `koanf:"attribution"`
	Sync        Sync        `koanf:"sync"`
	Metrics     Metrics     `koanf:"metrics"`
	Log         Log         `koanf:"log"`
}

func defaults() Config {
	return Config{
		Upstream: Upstream{
			PageSize:  100,
			MaxPages:  50,
			Timeout:   15 * time.Second,
			PageDelay: 500 * time.Millisecond,
		},
		Market: Market{Country: "Denmark", City: "Copenhagen"},
		Sync:   Sync{Interval: 6 * time.Hour, BatchSize: 200},
		Log:    Log{Level: "info", Format: "json"},
	}
}

// Load assembles the effective configuration. The file layer is optional;
// environment variables always win.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := configPath(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToPath), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.clamp()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envToPath maps EVENTSYNC_UPSTREAM__API_KEY to upstream.api_key. The double
// underscore separates nesting levels so keys may contain single underscores.
func envToPath(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	for _, p := range []string{"config.yaml", "config.yml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// clamp forces the page size into the range the upstream API accepts.
func (c *Config) clamp() {
	if c.Upstream.PageSize < 20 {
		c.Upstream.PageSize = 20
	}
	if c.Upstream.PageSize > 200 {
		c.Upstream.PageSize = 200
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url is required"))
	}
	if c.Upstream.APIKey == "" {
		errs = append(errs, errors.New("upstream.api_key is required"))
	}
	if c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required"))
	}
	if c.Attribution.BusinessID == "" {
		errs = append(errs, errors.New("attribution.business_id is required"))
	}
	if c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("sync.interval must be positive"))
	}
	return errors.Join(errs...)
}
