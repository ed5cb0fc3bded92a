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
	"sync"
	"testing"
	"time"

	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/stretchr/testify/require"
)

// fastKDF keeps tests quick; the output KDF is exercised in package kdf
func fastKDF() Option {
	return WithKDF(*kdf.DefaultParams(kdf.AlgorithmHKDF))
}

// secretFactor is a minimal knowledge factor
func secretFactor(id, secret string) *SetupFactor {
	return &SetupFactor{Type: "password", ID: id, Data: []byte(secret)}
}

func secretInput(secret string) DeriveFactor {
	return func(context.Context, *FactorInput) (*DerivedFactor, error) {
		return &DerivedFactor{Type: "password", Data: []byte(secret)}, nil
	}
}

// counterFactor stores a counter in its params and advances it on every
// derive, the way OTP factors do
func counterFactor(id, secret string) *SetupFactor {
	return &SetupFactor{
		Type: "counter",
		ID:   id,
		Data: []byte(secret),
		Params: func(context.Context, ParamsContext) (json.RawMessage, error) {
			return json.RawMessage(`{"counter":1}`), nil
		},
		Output: func(context.Context) (map[string]any, error) {
			return map[string]any{"counter": 1}, nil
		},
	}
}

func counterInput(secret string) DeriveFactor {
	return func(_ context.Context, in *FactorInput) (*DerivedFactor, error) {
		var p struct {
			Counter int `json:"counter"`
		}
		if err := json.Unmarshal(in.Params, &p); err != nil {
			return nil, err
		}
		return &DerivedFactor{
			Type: "counter",
			Data: []byte(secret),
			Params: func(context.Context, ParamsContext) (json.RawMessage, error) {
				return json.Marshal(map[string]int{"counter": p.Counter + 1})
			},
		}, nil
	}
}

func setupABC(t *testing.T, threshold int, opts ...Option) *DerivedKey {
	t.Helper()
	opts = append([]Option{fastKDF(), WithThreshold(threshold)}, opts...)
	dk, err := Setup(context.Background(), []*SetupFactor{
		secretFactor("a", "alpha"),
		secretFactor("b", "bravo"),
		secretFactor("c", "charlie"),
	}, opts...)
	require.NoError(t, err)
	return dk
}

// inputs builds derive inputs from id/secret pairs
func inputs(pairs ...string) map[string]DeriveFactor {
	m := make(map[string]DeriveFactor, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = secretInput(pairs[i+1])
	}
	return m
}

// recorder captures metrics events
type recorder struct {
	mu  sync.Mutex
	ops []string
	err []string
}

func (r *recorder) RecordOperation(op string, _ time.Duration, errType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	r.err = append(r.err, errType)
}

func (r *recorder) RecordFactors(string, int) {}
