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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/metrics"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, kdf.AlgorithmArgon2id, cfg.KDF.Algorithm)
	assert.Equal(t, mfkdf.DefaultSize, cfg.Policy.Size)
	assert.Equal(t, mfkdf.DefaultMaxDepth, cfg.Policy.MaxDepth)
	assert.True(t, cfg.Policy.Integrity)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.NotEmpty(t, cfg.Storage.Path)
}

func TestLoad_Success(t *testing.T) {
	path := writeConfig(t, `
kdf:
  type: pbkdf2
  rounds: 200000
policy:
  size: 16
  threshold: 2
storage:
  backend: memory
  codec: cbor
logging:
  level: debug
  format: json
metrics:
  enabled: true
rate_limit:
  enabled: true
  attempts_per_minute: 10
  burst: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, kdf.Params{Algorithm: kdf.AlgorithmPBKDF2, Digest: "sha256", Rounds: 200000}, cfg.KDF,
		"switching algorithms drops the argon2 costs")
	assert.Equal(t, 16, cfg.Policy.Size)
	assert.Equal(t, 2, cfg.Policy.Threshold)
	assert.Equal(t, mfkdf.DefaultMaxDepth, cfg.Policy.MaxDepth, "unset fields keep their defaults")
	assert.True(t, cfg.Policy.Integrity)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "cbor", cfg.Storage.Codec)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.AttemptsPerMinute)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "policy: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  backend: s3\n"))
	assert.ErrorContains(t, err, "invalid storage backend")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MFKDF_KDF", "scrypt")
	t.Setenv("MFKDF_POLICY_SIZE", "64")
	t.Setenv("MFKDF_POLICY_THRESHOLD", "not-a-number")
	t.Setenv("MFKDF_INTEGRITY", "false")
	t.Setenv("MFKDF_STORAGE_BACKEND", "memory")
	t.Setenv("MFKDF_DATA_DIR", "/var/lib/mfkdf")
	t.Setenv("MFKDF_CODEC", "cbor")
	t.Setenv("MFKDF_LOG_LEVEL", "warn")
	t.Setenv("MFKDF_LOG_FORMAT", "json")
	t.Setenv("MFKDF_METRICS", "true")
	t.Setenv("MFKDF_RATE_LIMIT", "true")
	t.Setenv("MFKDF_RATE_LIMIT_PER_MINUTE", "5")

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, *kdf.DefaultParams(kdf.AlgorithmScrypt), cfg.KDF)
	assert.Equal(t, 64, cfg.Policy.Size)
	assert.Equal(t, 0, cfg.Policy.Threshold, "invalid values are ignored")
	assert.False(t, cfg.Policy.Integrity)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/mfkdf", cfg.Storage.Path)
	assert.Equal(t, "cbor", cfg.Storage.Codec)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.RateLimit.AttemptsPerMinute)
}

func TestEnvOverrides_UnknownKDF(t *testing.T) {
	t.Setenv("MFKDF_KDF", "bcrypt")
	_, err := LoadOrDefault("")
	assert.ErrorIs(t, err, kdf.ErrUnsupportedAlgorithm)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"kdf below minimum", func(c *Config) { c.KDF.Memory = 1 }},
		{"zero size", func(c *Config) { c.Policy.Size = 0 }},
		{"negative threshold", func(c *Config) { c.Policy.Threshold = -1 }},
		{"zero depth", func(c *Config) { c.Policy.MaxDepth = 0 }},
		{"file without path", func(c *Config) { c.Storage.Path = "" }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }},
		{"unknown codec", func(c *Config) { c.Storage.Codec = "xml" }},
		{"unknown level", func(c *Config) { c.Logging.Level = "trace" }},
		{"unknown format", func(c *Config) { c.Logging.Format = "console" }},
		{"rate limit without rate", func(c *Config) { c.RateLimit.Enabled = true }},
		{"negative burst", func(c *Config) { c.RateLimit.Burst = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFactories(t *testing.T) {
	cfg := Default()
	cfg.KDF = *kdf.DefaultParams(kdf.AlgorithmHKDF)
	cfg.Policy.Size = 16
	cfg.Policy.Threshold = 1
	cfg.Storage.Backend = "memory"
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	var buf bytes.Buffer
	log := cfg.CreateLogger(&buf)
	rec := cfg.CreateMetrics()
	assert.IsType(t, &metrics.NoOp{}, rec)

	store, err := cfg.CreateStore()
	require.NoError(t, err)

	opts := append(cfg.SetupOptions(), mfkdf.WithLogger(log), mfkdf.WithMetrics(rec))
	dk, err := mfkdf.Setup(context.Background(), []*mfkdf.SetupFactor{
		{Type: "password", ID: "a", Data: []byte("alpha")},
		{Type: "password", ID: "b", Data: []byte("bravo")},
	}, opts...)
	require.NoError(t, err)
	assert.Len(t, dk.Key(), 16)
	assert.Equal(t, 1, dk.Policy().Threshold)
	assert.Contains(t, buf.String(), `"msg":"key setup complete"`)

	require.NoError(t, store.Save("vault", dk.Policy()))
	loaded, err := store.Load("vault")
	require.NoError(t, err)

	got, err := mfkdf.Derive(context.Background(), loaded, map[string]mfkdf.DeriveFactor{
		"b": func(context.Context, *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
			return &mfkdf.DerivedFactor{Type: "password", Data: []byte("bravo")}, nil
		},
	}, cfg.DeriveOptions()...)
	require.NoError(t, err)
	assert.Equal(t, dk.Key(), got.Key())
}

func TestCreateLimiter(t *testing.T) {
	cfg := Default()
	limiter := cfg.CreateLimiter()
	defer limiter.Stop()
	assert.False(t, limiter.IsEnabled())

	cfg.RateLimit.Enabled = true
	cfg.RateLimit.AttemptsPerMinute = 1
	cfg.RateLimit.Burst = 1
	throttled := cfg.CreateLimiter()
	defer throttled.Stop()
	assert.True(t, throttled.Allow("vault"))
	assert.False(t, throttled.Allow("vault"))
}

func TestCreateStore_File(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "data")
	store, err := cfg.CreateStore()
	require.NoError(t, err)
	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	cfg.Storage.Codec = "xml"
	_, err = cfg.CreateStore()
	assert.Error(t, err)
}
