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

package mfkdf

import (
	"time"

	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/logger"
	"github.com/jeremyhahn/go-mfkdf/pkg/metrics"
)

const (
	// DefaultSize is the default key and share length in bytes
	DefaultSize = 32

	// DefaultHintBits is the default hint length used by AddHint
	DefaultHintBits = 7

	saltSize = 32
)

type config struct {
	threshold int
	size      int
	kdf       kdf.Params
	policyID  string
	factorID  string
	integrity bool
	verify    bool
	maxDepth  int
	logger    logger.Logger
	metrics   metrics.Recorder
	limiter   Limiter
}

// Limiter throttles derive attempts per policy id. It is satisfied by
// *ratelimit.Limiter.
type Limiter interface {
	Allow(key string) bool
}

// Option configures Setup, Derive and the stack helpers
type Option func(*config)

func newConfig(opts []Option) *config {
	cfg := &config{
		size:      DefaultSize,
		kdf:       *kdf.DefaultParams(kdf.AlgorithmArgon2id),
		integrity: true,
		verify:    true,
		maxDepth:  DefaultMaxDepth,
		logger:    logger.NewNoOp(),
		metrics:   metrics.NewNoOp(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithThreshold sets the number of factors required. Zero means all.
func WithThreshold(k int) Option {
	return func(c *config) { c.threshold = k }
}

// WithSize sets the key length in bytes
func WithSize(size int) Option {
	return func(c *config) { c.size = size }
}

// WithKDF selects the output KDF and its parameters
func WithKDF(params kdf.Params) Option {
	return func(c *config) { c.kdf = params }
}

// WithPolicyID sets the policy $id instead of a random UUID
func WithPolicyID(id string) Option {
	return func(c *config) { c.policyID = id }
}

// WithFactorID sets the id of the factor produced by Stack
func WithFactorID(id string) Option {
	return func(c *config) { c.factorID = id }
}

// WithIntegrity enables or disables the policy integrity tag at setup
func WithIntegrity(enabled bool) Option {
	return func(c *config) { c.integrity = enabled }
}

// WithVerify enables or disables integrity verification on derive. An
// unverified derive of a tagged policy leaves its params and tag untouched.
func WithVerify(enabled bool) Option {
	return func(c *config) { c.verify = enabled }
}

// WithMaxDepth bounds stack nesting accepted on derive
func WithMaxDepth(depth int) Option {
	return func(c *config) { c.maxDepth = depth }
}

// WithLogger sets the structured logger
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(r metrics.Recorder) Option {
	return func(c *config) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithLimiter throttles Derive calls by policy id. A rejected attempt fails
// with ErrRateLimited before any factor is evaluated.
func WithLimiter(l Limiter) Option {
	return func(c *config) { c.limiter = l }
}

func (c *config) record(op string, start time.Time, factors int, err error) {
	c.metrics.RecordOperation(op, time.Since(start), ErrorType(err))
	if err == nil {
		c.metrics.RecordFactors(op, factors)
	}
}
