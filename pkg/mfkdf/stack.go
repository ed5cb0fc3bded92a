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
	"maps"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
)

// Stack sets up a nested policy over factors and returns it as a single
// factor whose material is the nested derived key. Stacks compose: a stack
// may contain other stacks. The nested key uses HKDF unless opts select
// another KDF, since the outer policy already stretches the combined secret.
func Stack(ctx context.Context, factors []*SetupFactor, opts ...Option) (*SetupFactor, error) {
	base := []Option{WithKDF(*kdf.DefaultParams(kdf.AlgorithmHKDF))}
	cfg := newConfig(append(base, opts...))
	inner, err := setup(ctx, factors, cfg)
	if err != nil {
		return nil, err
	}
	defer inner.Destroy()

	id := cfg.factorID
	if id == "" {
		id = uuid.NewString()
	}
	outputs := inner.Outputs()
	return &SetupFactor{
		Type:   TypeStack,
		ID:     id,
		Data:   inner.Key(),
		Policy: inner.Policy(),
		Output: stackOutput(outputs),
	}, nil
}

// DeriveStack returns the derive-side factor for a stack slot. inputs are
// the factors of the nested policy, keyed by id.
func DeriveStack(inputs map[string]DeriveFactor) DeriveFactor {
	return func(ctx context.Context, in *FactorInput) (*DerivedFactor, error) {
		if in.Policy == nil {
			return nil, fmt.Errorf("%w: factor %q is not a stack", ErrValidation, in.ID)
		}
		cfg := in.cfg
		if cfg == nil {
			cfg = newConfig(nil)
		}
		inner, err := derive(ctx, in.Policy, inputs, in.depth+1, cfg)
		if err != nil {
			return nil, err
		}
		defer inner.Destroy()
		return &DerivedFactor{
			Type:   TypeStack,
			Data:   inner.Key(),
			Policy: inner.Policy(),
			Output: stackOutput(inner.Outputs()),
		}, nil
	}
}

func stackOutput(outputs map[string]map[string]any) OutputFunc {
	return func(context.Context) (map[string]any, error) {
		out := make(map[string]any, len(outputs))
		for id, o := range outputs {
			out[id] = maps.Clone(o)
		}
		return out, nil
	}
}

// withOptions appends extra to a copy of opts so the caller's slice is
// never written
func withOptions(opts []Option, extra ...Option) []Option {
	out := make([]Option, 0, len(opts)+len(extra))
	out = append(out, opts...)
	return append(out, extra...)
}

// And requires both a and b
func And(ctx context.Context, a, b *SetupFactor, opts ...Option) (*SetupFactor, error) {
	return Stack(ctx, []*SetupFactor{a, b}, withOptions(opts, WithThreshold(2))...)
}

// Or requires either a or b
func Or(ctx context.Context, a, b *SetupFactor, opts ...Option) (*SetupFactor, error) {
	return Stack(ctx, []*SetupFactor{a, b}, withOptions(opts, WithThreshold(1))...)
}

// AtLeast requires any n of factors
func AtLeast(ctx context.Context, n int, factors []*SetupFactor, opts ...Option) (*SetupFactor, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: at least 1 factor must be required, got %d", ErrRange, n)
	}
	return Stack(ctx, factors, withOptions(opts, WithThreshold(n))...)
}

// All requires every one of factors
func All(ctx context.Context, factors []*SetupFactor, opts ...Option) (*SetupFactor, error) {
	return AtLeast(ctx, len(factors), factors, opts...)
}

// Any requires one of factors
func Any(ctx context.Context, factors []*SetupFactor, opts ...Option) (*SetupFactor, error) {
	return AtLeast(ctx, 1, factors, opts...)
}

// PolicySetup sets up a key whose single factor is root, typically a tree
// built with And, Or and AtLeast
func PolicySetup(ctx context.Context, root *SetupFactor, opts ...Option) (*DerivedKey, error) {
	dk, err := Setup(ctx, []*SetupFactor{root}, withOptions(opts, WithThreshold(1))...)
	if err != nil {
		return nil, err
	}
	if err := validate(dk.policy, dk.cfg.maxDepth); err != nil {
		dk.Destroy()
		return nil, err
	}
	return dk, nil
}

// PolicyDerive derives a key from a flat map of leaf factors. Each stack in
// the policy is entered only when its nested policy is satisfiable from the
// supplied ids, so callers need not know the tree's shape.
func PolicyDerive(ctx context.Context, policy *Policy, inputs map[string]DeriveFactor, opts ...Option) (*DerivedKey, error) {
	maxDepth := newConfig(opts).maxDepth
	if err := validate(policy, maxDepth); err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(inputs))
	for id := range inputs {
		have[id] = true
	}
	return Derive(ctx, policy, expand(policy, inputs, have, 0, maxDepth), opts...)
}

func expand(policy *Policy, inputs map[string]DeriveFactor, have map[string]bool, depth, maxDepth int) map[string]DeriveFactor {
	out := make(map[string]DeriveFactor)
	for _, f := range policy.Factors {
		if f.IsStack() {
			if evaluate(f.Policy, have, depth+1, maxDepth) {
				out[f.ID] = DeriveStack(expand(f.Policy, inputs, have, depth+1, maxDepth))
			}
			continue
		}
		if fn, ok := inputs[f.ID]; ok {
			out[f.ID] = fn
		}
	}
	return out
}
