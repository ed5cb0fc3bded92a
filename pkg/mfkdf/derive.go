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
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-mfkdf/internal/memlock"
	"github.com/jeremyhahn/go-mfkdf/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/logger"
	"github.com/jeremyhahn/go-mfkdf/pkg/metrics"
)

// Derive reproduces the key described by policy from the factors in inputs,
// keyed by factor id. Slots without an input are treated as unknown; at
// least Threshold of them must be supplied. The returned key carries a
// complete share vector and a refreshed policy that callers should persist,
// since factors such as HOTP advance their params on every use. When
// verification is disabled a tagged policy is returned unchanged.
func Derive(ctx context.Context, policy *Policy, inputs map[string]DeriveFactor, opts ...Option) (*DerivedKey, error) {
	cfg := newConfig(opts)
	start := time.Now()
	if cfg.limiter != nil && policy != nil && !cfg.limiter.Allow(policy.ID) {
		err := fmt.Errorf("%w: policy %q", ErrRateLimited, policy.ID)
		cfg.record(metrics.OpDerive, start, len(inputs), err)
		cfg.logger.Warn("derive attempt throttled", logger.String("policy", policy.ID))
		return nil, err
	}
	dk, err := derive(ctx, policy, inputs, 0, cfg)
	cfg.record(metrics.OpDerive, start, len(inputs), err)
	if err != nil {
		return nil, err
	}
	return dk, nil
}

func derive(ctx context.Context, policy *Policy, inputs map[string]DeriveFactor, depth int, cfg *config) (*DerivedKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth > cfg.maxDepth {
		return nil, fmt.Errorf("%w: exceeds %d levels", ErrMaxDepth, cfg.maxDepth)
	}
	if depth == 0 {
		if err := validate(policy, cfg.maxDepth); err != nil {
			return nil, err
		}
	}

	log := cfg.logger.With(logger.String("policy", policy.ID), logger.Int("depth", depth))
	n := len(policy.Factors)
	shares := make([][]byte, n)
	results := make([]*DerivedFactor, n)
	supplied := make([]string, 0, len(inputs))

	for i, desc := range policy.Factors {
		fn, ok := inputs[desc.ID]
		if !ok || fn == nil {
			continue
		}
		res, err := fn(ctx, &FactorInput{
			ID:     desc.ID,
			Type:   desc.Type,
			Params: desc.Params,
			Policy: desc.Policy,
			depth:  depth,
			cfg:    cfg,
		})
		if err != nil {
			if desc.IsStack() && errors.Is(err, ErrInsufficientFactors) {
				log.Debug("stack not derivable", logger.String("factor", desc.ID))
				continue
			}
			return nil, fmt.Errorf("factor %q: %w", desc.ID, err)
		}
		if res == nil {
			return nil, fmt.Errorf("%w: factor %q returned no result", ErrValidation, desc.ID)
		}
		share, err := unmaskShare(desc, res, policy.Size)
		if err != nil {
			return nil, err
		}
		shares[i] = share
		if res.Type != TypePersisted {
			results[i] = res
		}
		supplied = append(supplied, desc.ID)
	}

	if len(supplied) < policy.Threshold {
		return nil, fmt.Errorf("%w: %d of %d required factors supplied", ErrInsufficientFactors, len(supplied), policy.Threshold)
	}

	combined, err := secretsharing.Combine(shares, policy.Threshold, n)
	if err != nil {
		return nil, wrapShareError(err)
	}
	secret := memlock.From(combined)
	memlock.Wipe(combined)

	key, err := kdf.Derive(secret.Bytes(), policy.Salt, policy.Size, &policy.KDF)
	if err != nil {
		secret.Destroy()
		return nil, err
	}

	// Nested policies are covered by the tag of the outermost policy, which
	// hashes each stack's policy into its params. A wrong nested key then
	// only yields a wrong share at the parent level.
	verify := cfg.verify && depth == 0
	if verify {
		if err := verifyIntegrity(policy, key); err != nil {
			log.Warn("policy integrity check failed")
			secret.Destroy()
			return nil, err
		}
	}

	// Reshare from the same threshold-sized subset Combine used: the first
	// Threshold supplied slots in policy order. A later supplied share that
	// disagrees with the result came from a wrong factor and must not
	// refresh that factor's params. A wrong factor inside the subset makes
	// the key itself wrong.
	basis := make([][]byte, n)
	used := 0
	for i, s := range shares {
		if s != nil && used < policy.Threshold {
			basis[i] = s
			used++
		}
	}
	full, err := secretsharing.Reshare(basis, policy.Threshold, n)
	if err != nil {
		secret.Destroy()
		return nil, wrapShareError(err)
	}
	for i, s := range shares {
		if s != nil && subtle.ConstantTimeCompare(s, full[i]) != 1 {
			log.Debug("supplied factor does not match the key", logger.String("factor", policy.Factors[i].ID))
			results[i] = nil
		}
	}

	// An unverified key may be wrong. Refreshing params or re-signing with
	// it would lock out the correct factors, so a tagged policy is returned
	// as loaded.
	if depth == 0 && !verify && len(policy.HMAC) > 0 {
		log.Info("key derived without verification, policy unchanged",
			logger.Strings("factors", supplied),
			logger.Int("threshold", policy.Threshold))
		return newDerivedKey(policy.Clone(), key, secret, full, map[string]map[string]any{}, cfg), nil
	}

	next := policy.Clone()
	outputs := make(map[string]map[string]any, len(supplied))
	for i, res := range results {
		if res == nil {
			continue
		}
		desc := next.Factors[i]
		if res.Policy != nil {
			desc.Policy = res.Policy
		}
		if res.Params != nil {
			params, err := setupParams(ctx, res.Params, key, desc.Salt, desc.ID)
			if err != nil {
				secret.Destroy()
				return nil, fmt.Errorf("factor %q params: %w", desc.ID, err)
			}
			desc.Params = params
		}
		out, err := runOutput(ctx, res.Output)
		if err != nil {
			secret.Destroy()
			return nil, fmt.Errorf("factor %q output: %w", desc.ID, err)
		}
		outputs[desc.ID] = out
	}
	if len(policy.HMAC) > 0 {
		if err := sign(next, key); err != nil {
			secret.Destroy()
			return nil, err
		}
	}

	log.Info("key derived",
		logger.Strings("factors", supplied),
		logger.Int("threshold", policy.Threshold),
		logger.Bool("verified", verify))

	return newDerivedKey(next, key, secret, full, outputs, cfg), nil
}

// unmaskShare recovers a slot's share from a derived factor. Persisted
// factors supply the share itself.
func unmaskShare(desc *Factor, res *DerivedFactor, size int) ([]byte, error) {
	if res.Type == TypePersisted {
		if len(res.Data) != size {
			return nil, fmt.Errorf("%w: persisted share for %q is %d bytes, want %d", ErrRange, desc.ID, len(res.Data), size)
		}
		return cloneBytes(res.Data), nil
	}
	if res.Type != desc.Type {
		return nil, fmt.Errorf("%w: factor %q is %q, input is %q", ErrValidation, desc.ID, desc.Type, res.Type)
	}
	material, err := stretch(res.Data, desc.Salt, desc.ID, size)
	if err != nil {
		return nil, err
	}
	if desc.Hint != "" {
		hint, err := computeHint(material, desc.Salt, desc.ID, len(desc.Hint))
		if err != nil {
			return nil, err
		}
		if hint != desc.Hint {
			return nil, fmt.Errorf("%w: %q", ErrHintMismatch, desc.ID)
		}
	}
	return xorPad(desc.Pad, material)
}
