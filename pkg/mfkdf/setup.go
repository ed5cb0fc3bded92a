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
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-mfkdf/internal/memlock"
	"github.com/jeremyhahn/go-mfkdf/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/logger"
	"github.com/jeremyhahn/go-mfkdf/pkg/metrics"
)

// Setup creates a new derived key protected by factors. A random root
// secret is split into one share per factor, each share is masked with its
// factor's stretched material, and the output key is the KDF of the root
// secret. The returned key's Policy is what callers persist.
func Setup(ctx context.Context, factors []*SetupFactor, opts ...Option) (*DerivedKey, error) {
	cfg := newConfig(opts)
	start := time.Now()
	dk, err := setup(ctx, factors, cfg)
	cfg.record(metrics.OpSetup, start, len(factors), err)
	if err != nil {
		cfg.logger.WithError(err).Error("key setup failed")
		return nil, err
	}
	return dk, nil
}

func setup(ctx context.Context, factors []*SetupFactor, cfg *config) (*DerivedKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := len(factors)
	if n < 1 || n > secretsharing.MaxShares {
		return nil, fmt.Errorf("%w: between 1 and %d factors are required, got %d", ErrRange, secretsharing.MaxShares, n)
	}
	threshold := cfg.threshold
	if threshold == 0 {
		threshold = n
	}
	if threshold < 1 || threshold > n {
		return nil, fmt.Errorf("%w: threshold %d must be between 1 and %d", ErrRange, threshold, n)
	}
	if cfg.size < 1 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrRange, cfg.size)
	}
	if err := kdf.Validate(&cfg.kdf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	seen := make(map[string]bool)
	for _, f := range factors {
		if err := checkSetupFactor(f, seen, cfg.maxDepth); err != nil {
			return nil, err
		}
	}

	policyID := cfg.policyID
	if policyID == "" {
		policyID = uuid.NewString()
	}

	secret := memlock.New(cfg.size)
	if _, err := rand.Read(secret.Bytes()); err != nil {
		secret.Destroy()
		return nil, fmt.Errorf("failed to generate root secret: %w", err)
	}
	shares, err := secretsharing.Split(secret.Bytes(), threshold, n)
	if err != nil {
		secret.Destroy()
		return nil, wrapShareError(err)
	}
	salt, err := randomBytes(saltSize)
	if err != nil {
		secret.Destroy()
		return nil, err
	}
	key, err := kdf.Derive(secret.Bytes(), salt, cfg.size, &cfg.kdf)
	if err != nil {
		secret.Destroy()
		return nil, err
	}

	policy := &Policy{
		ID:        policyID,
		Threshold: threshold,
		Salt:      salt,
		Size:      cfg.size,
		KDF:       cfg.kdf,
		Factors:   make([]*Factor, n),
	}
	outputs := make(map[string]map[string]any, n)
	for i, f := range factors {
		desc, out, err := newDescriptor(ctx, f, shares[i], key, cfg.size)
		if err != nil {
			secret.Destroy()
			return nil, err
		}
		policy.Factors[i] = desc
		outputs[f.ID] = out
	}
	if cfg.integrity {
		if err := sign(policy, key); err != nil {
			secret.Destroy()
			return nil, err
		}
	}

	cfg.logger.Info("key setup complete",
		logger.String("policy", policy.ID),
		logger.Int("threshold", threshold),
		logger.Int("factors", n),
		logger.String("kdf", cfg.kdf.Algorithm.String()),
		logger.Bool("integrity", cfg.integrity))

	return newDerivedKey(policy, key, secret, shares, outputs, cfg), nil
}

// newDescriptor masks share with the factor's stretched material under a
// fresh salt and computes the factor's params and output
func newDescriptor(ctx context.Context, f *SetupFactor, share, key []byte, size int) (*Factor, map[string]any, error) {
	salt, err := randomBytes(saltSize)
	if err != nil {
		return nil, nil, err
	}
	material, err := stretch(f.Data, salt, f.ID, size)
	if err != nil {
		return nil, nil, err
	}
	pad, err := xorPad(share, material)
	if err != nil {
		return nil, nil, err
	}
	params, err := setupParams(ctx, f.Params, key, salt, f.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("factor %q params: %w", f.ID, err)
	}
	out, err := runOutput(ctx, f.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("factor %q output: %w", f.ID, err)
	}
	desc := &Factor{
		ID:     f.ID,
		Type:   f.Type,
		Pad:    pad,
		Salt:   salt,
		Params: params,
		Policy: f.Policy.Clone(),
	}
	return desc, out, nil
}

// checkSetupFactor validates the shape of f and records its ids, including
// those nested in a stack, in seen
func checkSetupFactor(f *SetupFactor, seen map[string]bool, maxDepth int) error {
	if f == nil {
		return fmt.Errorf("%w: factor cannot be nil", ErrValidation)
	}
	if f.ID == "" {
		return fmt.Errorf("%w: factor id cannot be empty", ErrValidation)
	}
	if f.Type == "" {
		return fmt.Errorf("%w: factor %q has no type", ErrValidation, f.ID)
	}
	if f.Type == TypePersisted {
		return fmt.Errorf("%w: %q factors exist only on derive", ErrUnsupportedFactor, TypePersisted)
	}
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: factor %q has no material", ErrRange, f.ID)
	}
	if (f.Type == TypeStack) != (f.Policy != nil) {
		return fmt.Errorf("%w: factor %q of type %q is malformed", ErrValidation, f.ID, f.Type)
	}
	if seen[f.ID] {
		return fmt.Errorf("%w: %q", ErrDuplicateID, f.ID)
	}
	seen[f.ID] = true
	if f.Policy != nil {
		if err := validateLevel(f.Policy, 1, maxDepth, seen); err != nil {
			return err
		}
	}
	return nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}
