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
	"fmt"
	"time"

	"github.com/jeremyhahn/go-mfkdf/internal/memlock"
	"github.com/jeremyhahn/go-mfkdf/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-mfkdf/pkg/logger"
	"github.com/jeremyhahn/go-mfkdf/pkg/metrics"
)

// Reconstitute changes the factor set and threshold of a derived key
// without changing the key. Factors named in remove are dropped. Each
// factor in add is appended, or replaces the existing factor with the same
// id. The root secret is then split afresh at threshold across the new
// factor set and every pad is recomputed.
//
// Either every change is applied or, on error, none is.
func (dk *DerivedKey) Reconstitute(ctx context.Context, remove []string, add []*SetupFactor, threshold int) error {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	return dk.run(ctx, metrics.OpReconstitute, remove, add, threshold)
}

// SetThreshold changes the number of factors required to derive the key
func (dk *DerivedKey) SetThreshold(ctx context.Context, threshold int) error {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	return dk.run(ctx, metrics.OpSetThreshold, nil, nil, threshold)
}

// AddFactor adds a single new factor, keeping the threshold
func (dk *DerivedKey) AddFactor(ctx context.Context, factor *SetupFactor) error {
	return dk.AddFactors(ctx, []*SetupFactor{factor})
}

// AddFactors adds new factors, keeping the threshold. Ids already present
// in the policy are rejected; use RecoverFactors to replace a factor.
func (dk *DerivedKey) AddFactors(ctx context.Context, factors []*SetupFactor) error {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	for _, f := range factors {
		if f == nil {
			continue
		}
		if _, i := dk.policy.Factor(f.ID); i >= 0 {
			return fmt.Errorf("%w: %q", ErrDuplicateID, f.ID)
		}
	}
	return dk.run(ctx, metrics.OpAddFactors, nil, factors, dk.policy.Threshold)
}

// RemoveFactor removes a single factor, keeping the threshold
func (dk *DerivedKey) RemoveFactor(ctx context.Context, id string) error {
	return dk.RemoveFactors(ctx, []string{id})
}

// RemoveFactors removes factors, keeping the threshold. It fails with
// ErrRange if fewer factors than the threshold would remain.
func (dk *DerivedKey) RemoveFactors(ctx context.Context, ids []string) error {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	return dk.run(ctx, metrics.OpRemoveFactors, ids, nil, dk.policy.Threshold)
}

// RecoverFactor replaces the material of an existing factor, keeping its id
func (dk *DerivedKey) RecoverFactor(ctx context.Context, factor *SetupFactor) error {
	return dk.RecoverFactors(ctx, []*SetupFactor{factor})
}

// RecoverFactors replaces the material of existing factors
func (dk *DerivedKey) RecoverFactors(ctx context.Context, factors []*SetupFactor) error {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	for _, f := range factors {
		if f == nil {
			continue
		}
		if _, i := dk.policy.Factor(f.ID); i < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownFactor, f.ID)
		}
	}
	return dk.run(ctx, metrics.OpRecoverFactor, nil, factors, dk.policy.Threshold)
}

func (dk *DerivedKey) run(ctx context.Context, op string, remove []string, add []*SetupFactor, threshold int) error {
	start := time.Now()
	err := dk.reconstitute(ctx, remove, add, threshold)
	dk.cfg.record(op, start, len(remove)+len(add), err)
	if err != nil {
		dk.cfg.logger.WithError(err).Warn("reconstitution rejected", logger.String("operation", op))
		return err
	}
	dk.cfg.logger.Info("key reconstituted",
		logger.String("operation", op),
		logger.String("policy", dk.policy.ID),
		logger.Strings("removed", remove),
		logger.Strings("added", setupIDs(add)),
		logger.Int("threshold", threshold),
		logger.Int("factors", len(dk.policy.Factors)))
	return nil
}

// reconstitute computes the new policy and shares on copies and swaps them
// in only once everything has succeeded. Callers hold dk.mu.
func (dk *DerivedKey) reconstitute(ctx context.Context, remove []string, add []*SetupFactor, threshold int) error {
	if err := dk.alive(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	policy := dk.policy

	// Retained factors keep their stretched material, recovered from the
	// current pad and share.
	materials := make(map[string][]byte, len(policy.Factors)+len(add))
	for i, f := range policy.Factors {
		m, err := xorPad(f.Pad, dk.shares[i])
		if err != nil {
			return err
		}
		materials[f.ID] = m
	}

	removed := make(map[string]bool, len(remove))
	for _, id := range remove {
		if _, i := policy.Factor(id); i < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownFactor, id)
		}
		removed[id] = true
	}
	factors := make([]*Factor, 0, len(policy.Factors)+len(add))
	for _, f := range policy.Factors {
		if !removed[f.ID] {
			factors = append(factors, f.Clone())
		}
	}

	outputs := make(map[string]map[string]any, len(dk.outputs)+len(add))
	for id, out := range dk.outputs {
		if !removed[id] {
			outputs[id] = out
		}
	}

	added := make(map[string]bool, len(add))
	for _, f := range add {
		if err := checkSetupFactor(f, make(map[string]bool), dk.cfg.maxDepth); err != nil {
			return err
		}
		if added[f.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, f.ID)
		}
		added[f.ID] = true

		// The share is filled in after the split; a zero share yields the
		// stretched material as the pad.
		desc, out, err := newDescriptor(ctx, f, make([]byte, policy.Size), dk.key, policy.Size)
		if err != nil {
			return err
		}
		materials[f.ID] = desc.Pad
		outputs[f.ID] = out

		replaced := false
		for i, existing := range factors {
			if existing.ID == f.ID {
				factors[i] = desc
				replaced = true
				break
			}
		}
		if !replaced {
			factors = append(factors, desc)
		}
	}

	n := len(factors)
	if n < 1 || n > secretsharing.MaxShares {
		return fmt.Errorf("%w: between 1 and %d factors are required, got %d", ErrRange, secretsharing.MaxShares, n)
	}
	if threshold < 1 || threshold > n {
		return fmt.Errorf("%w: threshold %d must be between 1 and %d", ErrRange, threshold, n)
	}

	shares, err := secretsharing.Split(dk.secret.Bytes(), threshold, n)
	if err != nil {
		return wrapShareError(err)
	}
	for i, f := range factors {
		pad, err := xorPad(shares[i], materials[f.ID])
		if err != nil {
			return err
		}
		f.Pad = pad
	}

	next := &Policy{
		Schema:    policy.Schema,
		ID:        policy.ID,
		Threshold: threshold,
		Salt:      cloneBytes(policy.Salt),
		Size:      policy.Size,
		KDF:       policy.KDF,
		Factors:   factors,
	}
	if err := validate(next, dk.cfg.maxDepth); err != nil {
		return err
	}
	if len(policy.HMAC) > 0 {
		if err := sign(next, dk.key); err != nil {
			return err
		}
	}

	for _, old := range dk.shares {
		memlock.Wipe(old)
	}
	dk.policy = next
	dk.shares = shares
	dk.outputs = outputs
	return nil
}

func setupIDs(factors []*SetupFactor) []string {
	ids := make([]string, 0, len(factors))
	for _, f := range factors {
		if f != nil {
			ids = append(ids, f.ID)
		}
	}
	return ids
}
