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
	"encoding/json"
)

// ParamsContext is handed to a factor when it computes its public params
type ParamsContext struct {
	// ID is the factor id
	ID string

	// Key is a 32-byte key private to this factor, derived from the output
	// key. Factors use it to seal values they must recover on a later derive.
	Key []byte
}

// ParamsFunc computes the public params persisted with a factor slot
type ParamsFunc func(ctx context.Context, pc ParamsContext) (json.RawMessage, error)

// OutputFunc returns public metadata about a factor, such as an otpauth URI
// to show the user once at setup
type OutputFunc func(ctx context.Context) (map[string]any, error)

// SetupFactor is the setup-side form of a factor. Data is the raw factor
// material; it is stretched and used to mask the factor's share.
type SetupFactor struct {
	Type   string
	ID     string
	Data   []byte
	Params ParamsFunc
	Output OutputFunc

	// Policy is the nested policy of a stack factor, nil for leaves
	Policy *Policy
}

// FactorInput is what a derive-side factor receives for its slot
type FactorInput struct {
	ID     string
	Type   string
	Params json.RawMessage

	// Policy is the nested policy when the slot is a stack
	Policy *Policy

	depth int
	cfg   *config
}

// DerivedFactor is the result of a derive-side factor. Data must equal the
// material used at setup for the key to come out right; nothing inside the
// engine compares it against a stored value.
type DerivedFactor struct {
	Type string
	Data []byte

	// Params computes the next params for the slot. nil keeps the stored
	// params unchanged.
	Params ParamsFunc

	Output OutputFunc

	// Policy is the refreshed nested policy of a stack
	Policy *Policy
}

// DeriveFactor reproduces a factor's material from user input and the
// params stored in its slot
type DeriveFactor func(ctx context.Context, in *FactorInput) (*DerivedFactor, error)

// setupParams runs a factor's params function with its params key
func setupParams(ctx context.Context, fn ParamsFunc, key, salt []byte, id string) (json.RawMessage, error) {
	if fn == nil {
		return nil, nil
	}
	pk, err := paramsKey(key, salt, id)
	if err != nil {
		return nil, err
	}
	return fn(ctx, ParamsContext{ID: id, Key: pk})
}

func runOutput(ctx context.Context, fn OutputFunc) (map[string]any, error) {
	if fn == nil {
		return map[string]any{}, nil
	}
	out, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
