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
	"io"
	"strings"

	"github.com/jeremyhahn/go-mfkdf/pkg/logger"
	"github.com/jeremyhahn/go-mfkdf/pkg/metrics"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/ratelimit"
	"github.com/jeremyhahn/go-mfkdf/pkg/storage"
	"github.com/jeremyhahn/go-mfkdf/pkg/storage/file"
)

// CreateLogger returns a structured logger writing to w
func (c *Config) CreateLogger(w io.Writer) logger.Logger {
	return logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  logger.ParseLevel(strings.ToLower(c.Logging.Level)),
		Format: strings.ToLower(c.Logging.Format),
		Output: w,
	})
}

// CreateMetrics returns the Prometheus recorder when metrics are enabled
func (c *Config) CreateMetrics() metrics.Recorder {
	if !c.Metrics.Enabled {
		metrics.Disable()
		return metrics.NewNoOp()
	}
	metrics.Enable()
	return metrics.NewPrometheus()
}

// CreateStore opens the configured policy store
func (c *Config) CreateStore() (*storage.PolicyStore, error) {
	codec, err := storage.NewCodec(c.Storage.Codec)
	if err != nil {
		return nil, err
	}
	var backend storage.Backend
	switch c.Storage.Backend {
	case "memory":
		backend = storage.NewMemory()
	default:
		fs, err := file.New(c.Storage.Path)
		if err != nil {
			return nil, err
		}
		backend = fs
	}
	return storage.NewPolicyStore(backend, codec), nil
}

// SetupOptions returns the engine options for creating a new key
func (c *Config) SetupOptions() []mfkdf.Option {
	opts := []mfkdf.Option{
		mfkdf.WithKDF(c.KDF),
		mfkdf.WithSize(c.Policy.Size),
		mfkdf.WithMaxDepth(c.Policy.MaxDepth),
		mfkdf.WithIntegrity(c.Policy.Integrity),
	}
	if c.Policy.Threshold > 0 {
		opts = append(opts, mfkdf.WithThreshold(c.Policy.Threshold))
	}
	return opts
}

// DeriveOptions returns the engine options for deriving an existing key
func (c *Config) DeriveOptions() []mfkdf.Option {
	return []mfkdf.Option{
		mfkdf.WithMaxDepth(c.Policy.MaxDepth),
		mfkdf.WithVerify(c.Policy.Integrity),
	}
}

// CreateLimiter returns the derive attempt limiter. A disabled limiter
// allows every attempt. Callers must Stop it.
func (c *Config) CreateLimiter() *ratelimit.Limiter {
	rl := c.RateLimit
	return ratelimit.New(&rl)
}
