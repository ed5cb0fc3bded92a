// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mfkdf.
//
// go-mfkdf is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/ratelimit"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of the mfkdf command
type Config struct {
	KDF     kdf.Params    `yaml:"kdf"`
	Policy  PolicyConfig  `yaml:"policy"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	// RateLimit throttles derive attempts per policy
	RateLimit ratelimit.Config `yaml:"rate_limit"`
}

// PolicyConfig holds the defaults for new policies
type PolicyConfig struct {
	// Size is the key length in bytes
	Size int `yaml:"size"`

	// Threshold is the number of factors required. Zero requires all.
	Threshold int `yaml:"threshold"`

	// MaxDepth bounds stack nesting on setup and derive
	MaxDepth int `yaml:"max_depth"`

	// Integrity signs new policies and verifies them on derive
	Integrity bool `yaml:"integrity"`
}

// StorageConfig selects where policies are kept
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, file
	Path    string `yaml:"path"`
	Codec   string `yaml:"codec"` // json, cbor
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls Prometheus collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultDataDir returns ~/.mfkdf, or .mfkdf when there is no home
// directory
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".mfkdf"
	}
	return filepath.Join(home, ".mfkdf")
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		KDF: *kdf.DefaultParams(kdf.AlgorithmArgon2id),
		Policy: PolicyConfig{
			Size:      mfkdf.DefaultSize,
			MaxDepth:  mfkdf.DefaultMaxDepth,
			Integrity: true,
		},
		Storage: StorageConfig{
			Backend: "file",
			Path:    DefaultDataDir(),
			Codec:   "json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults, applies environment variable
// overrides and validates the result
func Load(path string) (*Config, error) {
	// #nosec G304 - config file path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := decodeKDF(data, cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it is set and otherwise returns the
// defaults with environment overrides applied
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// decodeKDF re-reads the kdf section over the defaults of the algorithm it
// names, so switching algorithms does not inherit the Argon2 costs
func decodeKDF(data []byte, cfg *Config) error {
	var section struct {
		KDF yaml.Node `yaml:"kdf"`
	}
	if err := yaml.Unmarshal(data, &section); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if section.KDF.Kind == 0 {
		return nil
	}
	params := kdfDefaults(cfg.KDF.Algorithm)
	if err := section.KDF.Decode(&params); err != nil {
		return fmt.Errorf("failed to parse kdf section: %w", err)
	}
	cfg.KDF = params
	return nil
}

func kdfDefaults(alg kdf.Algorithm) kdf.Params {
	if p := kdf.DefaultParams(alg); p != nil {
		return *p
	}
	return kdf.Params{Algorithm: alg}
}

// applyEnvOverrides applies MFKDF_* environment variables
func applyEnvOverrides(cfg *Config) {
	if alg := os.Getenv("MFKDF_KDF"); alg != "" && kdf.Algorithm(alg) != cfg.KDF.Algorithm {
		cfg.KDF = kdfDefaults(kdf.Algorithm(alg))
	}
	envInt("MFKDF_POLICY_SIZE", &cfg.Policy.Size)
	envInt("MFKDF_POLICY_THRESHOLD", &cfg.Policy.Threshold)
	envInt("MFKDF_MAX_DEPTH", &cfg.Policy.MaxDepth)
	envBool("MFKDF_INTEGRITY", &cfg.Policy.Integrity)

	if backend := os.Getenv("MFKDF_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dataDir := os.Getenv("MFKDF_DATA_DIR"); dataDir != "" {
		cfg.Storage.Path = dataDir
	}
	if codec := os.Getenv("MFKDF_CODEC"); codec != "" {
		cfg.Storage.Codec = codec
	}

	if level := os.Getenv("MFKDF_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("MFKDF_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	envBool("MFKDF_METRICS", &cfg.Metrics.Enabled)
	envBool("MFKDF_RATE_LIMIT", &cfg.RateLimit.Enabled)
	envInt("MFKDF_RATE_LIMIT_PER_MINUTE", &cfg.RateLimit.AttemptsPerMinute)
}

func envInt(name string, dst *int) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %d: %v", name, raw, *dst, err)
		return
	}
	*dst = n
}

func envBool(name string, dst *bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %t: %v", name, raw, *dst, err)
		return
	}
	*dst = b
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := kdf.Validate(&c.KDF); err != nil {
		return fmt.Errorf("kdf: %w", err)
	}

	if c.Policy.Size < 1 {
		return fmt.Errorf("policy size must be positive, got %d", c.Policy.Size)
	}
	if c.Policy.Threshold < 0 {
		return fmt.Errorf("policy threshold cannot be negative, got %d", c.Policy.Threshold)
	}
	if c.Policy.MaxDepth < 1 {
		return fmt.Errorf("policy max_depth must be positive, got %d", c.Policy.MaxDepth)
	}

	switch c.Storage.Backend {
	case "memory":
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the file backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or file)", c.Storage.Backend)
	}
	switch c.Storage.Codec {
	case "", "json", "cbor":
	default:
		return fmt.Errorf("invalid storage codec: %s (must be json or cbor)", c.Storage.Codec)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", c.Logging.Level)
	}
	if c.RateLimit.Enabled && c.RateLimit.AttemptsPerMinute < 1 {
		return fmt.Errorf("rate_limit attempts_per_minute must be positive, got %d", c.RateLimit.AttemptsPerMinute)
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit burst cannot be negative, got %d", c.RateLimit.Burst)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}
	return nil
}
