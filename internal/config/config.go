// Package config provides configuration management for the wallet engine.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config carries the engine's runtime tunables. Unlike the wallet-CLI
// config it's descended from, it has no notion of chains, RPC endpoints,
// or output formatting — the engine is chain-contract-agnostic and
// presentation-agnostic; only the knobs named in the engine's own
// operations live here.
type Config struct {
	Version int `yaml:"version"`
	Home    string `yaml:"home"`

	// FeePerWord is the per-word fee rate in nicks used when a caller
	// does not supply fee_override (spec §4.4).
	FeePerWord uint64 `yaml:"fee_per_word"`

	// TxExpiryMinutes is how long a WalletTransaction may sit in a
	// pending state before the sync loop expires it and releases its
	// input locks (spec §5).
	TxExpiryMinutes int `yaml:"tx_expiry_minutes"`

	// RequestExpirationMinutes bounds the age of an approval request
	// before it is rejected as REQUEST_EXPIRED (spec §5).
	RequestExpirationMinutes int `yaml:"request_expiration_minutes"`

	// DefaultAutoLockMinutes seeds a fresh vault's auto-lock interval;
	// 0 disables auto-lock (spec §4.3).
	DefaultAutoLockMinutes int `yaml:"default_auto_lock_minutes"`

	// SyncIntervalSeconds is the sync loop's health-check cadence
	// (spec §5: "ticks every 10 seconds for health").
	SyncIntervalSeconds int `yaml:"sync_interval_seconds"`

	// AgeScryptWorkFactor is the scrypt work factor for vault AEAD
	// (lowered in tests, as the teacher's sigilcrypto package does).
	AgeScryptWorkFactor uint8 `yaml:"age_scrypt_work_factor"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures the ambient logger (internal/obs).
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from path, starting from Defaults and
// overlaying whatever the YAML file sets.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is supplied by the embedding application
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path under home.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// DefaultHome returns the default engine home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nockwallet"
	}
	return filepath.Join(home, ".nockwallet")
}

// TxExpiry returns the configured tx expiry as a duration in minutes,
// matching spec §5's TX_EXPIRY_MS.
func (c *Config) TxExpiry() int {
	return c.TxExpiryMinutes
}

// RequestExpiration returns the configured approval-request expiration
// in minutes, matching spec §5's REQUEST_EXPIRATION_MS.
func (c *Config) RequestExpiration() int {
	return c.RequestExpirationMinutes
}
