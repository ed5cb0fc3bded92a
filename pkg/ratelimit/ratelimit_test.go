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

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 60, // 1 per second
		Burst:             5,
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("vault"), "attempt %d is within the burst", i+1)
	}
	assert.False(t, limiter.Allow("vault"), "burst exhausted")
	assert.True(t, limiter.Allow("other"), "policies are limited independently")

	time.Sleep(1100 * time.Millisecond)
	assert.True(t, limiter.Allow("vault"), "a token refills after a second")
}

func TestDisabled(t *testing.T) {
	for _, cfg := range []*Config{nil, {Enabled: false, AttemptsPerMinute: 1}} {
		limiter := New(cfg)
		assert.False(t, limiter.IsEnabled())
		for i := 0; i < 100; i++ {
			require.True(t, limiter.Allow("vault"))
		}
		require.NoError(t, limiter.Wait(context.Background(), "vault"))
		limiter.Stop()
	}
}

func TestWait(t *testing.T) {
	limiter := New(&Config{Enabled: true, AttemptsPerMinute: 1, Burst: 1})
	defer limiter.Stop()

	require.NoError(t, limiter.Wait(context.Background(), "vault"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "vault"), "the next token is a minute away")
}

func TestReset(t *testing.T) {
	limiter := New(&Config{Enabled: true, AttemptsPerMinute: 1, Burst: 1})
	defer limiter.Stop()

	assert.True(t, limiter.Allow("vault"))
	assert.False(t, limiter.Allow("vault"))
	limiter.Reset("vault")
	assert.True(t, limiter.Allow("vault"))
}

func TestCleanup(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 60,
		CleanupInterval:   100 * time.Millisecond,
		MaxIdle:           200 * time.Millisecond,
	})
	defer limiter.Stop()

	limiter.Allow("vault")
	assert.Equal(t, 1, limiter.Stats()["active_policies"])

	assert.Eventually(t, func() bool {
		return limiter.Stats()["active_policies"] == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestStats(t *testing.T) {
	limiter := New(&Config{Enabled: true, AttemptsPerMinute: 120, Burst: 10})
	defer limiter.Stop()
	limiter.Stop()

	limiter.Allow("a")
	limiter.Allow("b")

	stats := limiter.Stats()
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, 2, stats["active_policies"])
	assert.Equal(t, 120.0, stats["rate_per_min"])
	assert.Equal(t, 10, stats["burst"])
}

func TestDeriveThrottling(t *testing.T) {
	ctx := context.Background()
	dk, err := mfkdf.Setup(ctx, []*mfkdf.SetupFactor{
		{Type: "password", ID: "password", Data: []byte("hunter2")},
	}, mfkdf.WithKDF(*kdf.DefaultParams(kdf.AlgorithmHKDF)), mfkdf.WithPolicyID("vault"))
	require.NoError(t, err)

	attempt := func(pw string) mfkdf.DeriveFactor {
		return func(context.Context, *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
			return &mfkdf.DerivedFactor{Type: "password", Data: []byte(pw)}, nil
		}
	}

	limiter := New(&Config{Enabled: true, AttemptsPerMinute: 1, Burst: 3})
	defer limiter.Stop()

	for _, guess := range []string{"123456", "password"} {
		_, err := mfkdf.Derive(ctx, dk.Policy(), map[string]mfkdf.DeriveFactor{"password": attempt(guess)},
			mfkdf.WithLimiter(limiter))
		require.ErrorIs(t, err, mfkdf.ErrIntegrity)
	}
	got, err := mfkdf.Derive(ctx, dk.Policy(), map[string]mfkdf.DeriveFactor{"password": attempt("hunter2")},
		mfkdf.WithLimiter(limiter))
	require.NoError(t, err)
	assert.Equal(t, dk.Key(), got.Key())

	_, err = mfkdf.Derive(ctx, dk.Policy(), map[string]mfkdf.DeriveFactor{"password": attempt("hunter2")},
		mfkdf.WithLimiter(limiter))
	assert.ErrorIs(t, err, mfkdf.ErrRateLimited)
	assert.Equal(t, "rate_limited", mfkdf.ErrorType(err))
}
