// Package config handles resolving configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Log levels accepted by [Config.LogLevel].
const (
	LogDebug = "debug"
	LogInfo  = "info"
	LogWarn  = "warn"
	LogError = "error"
)

// Config is the full process configuration. Values are resolved in order:
// [Default], the YAML config file, the .env file (if any), then the process
// environment.
type Config struct {
	LogLevel   string `yaml:"log_level"   env:"FOLIO_LOG_LEVEL"`
	WebAddress string `yaml:"web_address" env:"FOLIO_WEB_ADDRESS"`
	DevMode    bool   `yaml:"dev_mode"    env:"FOLIO_DEV_MODE"`
	// DbFilepath is the database location used when the secret provider does
	// not supply one, and in dev mode.
	DbFilepath string `yaml:"db_filepath" env:"FOLIO_DB_FILEPATH"`
	TOTPIssuer string `yaml:"totp_issuer" env:"FOLIO_TOTP_ISSUER"`

	Vault   Vault   `yaml:"vault"`
	Session Session `yaml:"session"`
	Login   Login   `yaml:"login"`
}

// Vault locates the database secret in a Vault KV v2 engine.
type Vault struct {
	Address string `yaml:"address" env:"VAULT_ADDR"`
	// Token is never read from the config file.
	Token string `yaml:"-"     env:"VAULT_TOKEN"`
	Mount string `yaml:"mount" env:"FOLIO_VAULT_MOUNT"`
	Path  string `yaml:"path"  env:"FOLIO_VAULT_PATH"`
	Key   string `yaml:"key"   env:"FOLIO_VAULT_KEY"`
}

// Session configures the server-side session store.
type Session struct {
	TTL           time.Duration `yaml:"ttl"            env:"FOLIO_SESSION_TTL"`
	PurgeInterval time.Duration `yaml:"purge_interval" env:"FOLIO_SESSION_PURGE_INTERVAL"`
	SecureCookies bool          `yaml:"secure_cookies" env:"FOLIO_SESSION_SECURE_COOKIES"`
	// HashKey signs the session cookie; hex or raw, at least 32 bytes. When
	// empty a random key is generated at startup.
	HashKey string `yaml:"-" env:"FOLIO_SESSION_HASH_KEY"`
}

// Login configures per-client throttling of credential submissions. A
// non-positive RatePerSecond disables throttling.
type Login struct {
	RatePerSecond float64 `yaml:"rate_per_second" env:"FOLIO_LOGIN_RATE"`
	Burst         int     `yaml:"burst"           env:"FOLIO_LOGIN_BURST"`
}

// Default returns a version of the config with all default values populated.
// Note that this configuration is _not_ valid outside of dev mode, as the
// Vault address must be set.
func Default() *Config {
	return &Config{
		LogLevel:   LogInfo,
		WebAddress: "localhost:9999",
		DbFilepath: filepath.Join(xdg.DataHome, "folio", "db.sqlite"),
		TOTPIssuer: "Folio",
		Vault: Vault{
			Mount: "secret",
			Path:  "db",
			Key:   "db_path",
		},
		Session: Session{
			TTL:           12 * time.Hour, //nolint:mnd // half a day
			PurgeInterval: 10 * time.Minute, //nolint:mnd // default janitor period
			SecureCookies: true,
		},
		Login: Login{
			RatePerSecond: 1,
			Burst:         10, //nolint:mnd // default burst
		},
	}
}

// Load loads a YAML configuration file from a path, merges it with defaults,
// applies environment overrides and validates it for completeness.
func Load(path string) (*Config, error) {
	bytes, err := os.ReadFile(path) //nolint:gosec // allow the config file to be loaded from anywhere
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err = yaml.Unmarshal(bytes, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file at %s: %w", path, err)
	}
	if err = ApplyEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnv loads the dotenv file (if it exists) into the process environment
// without overriding variables that are already set, then overlays the
// environment onto cfg.
func ApplyEnv(cfg *Config, dotenv string) error {
	if _, err := os.Stat(dotenv); err == nil {
		if err = godotenv.Load(dotenv); err != nil {
			return fmt.Errorf("failed to load %s: %w", dotenv, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LogLevel) {
	case LogDebug, LogInfo, LogWarn, LogError:
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.WebAddress == "" {
		errs = append(errs, errors.New("web_address is required"))
	}
	if c.DbFilepath == "" {
		errs = append(errs, errors.New("db_filepath is required"))
	}
	if c.TOTPIssuer == "" {
		errs = append(errs, errors.New("totp_issuer is required"))
	}
	if !c.DevMode {
		if c.Vault.Address == "" {
			errs = append(errs, errors.New("vault.address is required outside of dev mode"))
		}
		if c.Vault.Mount == "" || c.Vault.Path == "" || c.Vault.Key == "" {
			errs = append(errs, errors.New("vault.mount, vault.path and vault.key are required"))
		}
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Session.PurgeInterval <= 0 {
		errs = append(errs, errors.New("session.purge_interval must be positive"))
	}
	return errors.Join(errs...)
}
