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

package secretsharing

import (
	"bytes"
	"crypto/rand"
	"errors"
	"math/bits"
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSecret(t *testing.T, size int) []byte {
	t.Helper()
	secret := make([]byte, size)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	return secret
}

// subset keeps the shares whose positions are set in mask and nils the rest.
func subset(shares [][]byte, mask uint) [][]byte {
	out := make([][]byte, len(shares))
	for i := range shares {
		if mask&(1<<uint(i)) != 0 {
			out[i] = shares[i]
		}
	}
	return out
}

// randomSubset keeps exactly k randomly chosen shares.
func randomSubset(r *mrand.Rand, shares [][]byte, k int) [][]byte {
	out := make([][]byte, len(shares))
	for _, i := range r.Perm(len(shares))[:k] {
		out[i] = shares[i]
	}
	return out
}

func TestNewShamir(t *testing.T) {
	tests := []struct {
		name    string
		config  *ShareConfig
		wantErr error
	}{
		{name: "valid configuration", config: &ShareConfig{Threshold: 3, TotalShares: 5}},
		{name: "threshold equals total shares", config: &ShareConfig{Threshold: 5, TotalShares: 5}},
		{name: "minimum valid configuration", config: &ShareConfig{Threshold: 1, TotalShares: 1}},
		{name: "maximum valid configuration", config: &ShareConfig{Threshold: 255, TotalShares: 255}},
		{name: "nil config", config: nil, wantErr: ErrInvalidArgument},
		{name: "zero threshold", config: &ShareConfig{Threshold: 0, TotalShares: 5}, wantErr: ErrOutOfRange},
		{name: "zero total", config: &ShareConfig{Threshold: 0, TotalShares: 0}, wantErr: ErrOutOfRange},
		{name: "threshold greater than total", config: &ShareConfig{Threshold: 6, TotalShares: 5}, wantErr: ErrOutOfRange},
		{name: "too many shares", config: &ShareConfig{Threshold: 2, TotalShares: 256}, wantErr: ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewShamir(tt.config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestFieldBits(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{1, 4}, {2, 4}, {3, 4}, {7, 4}, {8, 4}, {15, 4},
		{16, 8}, {64, 8}, {127, 8}, {255, 8},
	}
	for _, tt := range tests {
		got := FieldBits(tt.total)
		assert.Equal(t, tt.want, got, "total=%d", tt.total)
		// The field always has room for N share indices plus zero.
		assert.GreaterOrEqual(t, 1<<got, tt.total+1)
		assert.GreaterOrEqual(t, got, bits.Len(uint(tt.total)))
	}
}

func TestField_Inverses(t *testing.T) {
	for _, f := range []*field{gf16, gf256} {
		seen := make(map[byte]bool)
		for i := 0; i < f.order; i++ {
			seen[f.exp[i]] = true
		}
		assert.Len(t, seen, f.order, "generator must be primitive in GF(2^%d)", f.bits)

		for a := 1; a <= f.order; a++ {
			assert.Equal(t, byte(1), f.mul(byte(a), f.inv(byte(a))), "GF(2^%d) a=%d", f.bits, a)
		}
	}
}

func TestField_InverseOfZeroPanics(t *testing.T) {
	assert.Panics(t, func() { gf256.inv(0) })
}

func TestSplit_ShareLengths(t *testing.T) {
	secret := randomSecret(t, 32)
	for _, cfg := range [][2]int{{1, 3}, {3, 3}, {2, 3}, {2, 20}, {17, 200}} {
		shares, err := Split(secret, cfg[0], cfg[1])
		require.NoError(t, err)
		require.Len(t, shares, cfg[1])
		for _, share := range shares {
			assert.Len(t, share, len(secret))
		}
	}
}

func TestSplit_Disjunction(t *testing.T) {
	secret := []byte("one of many")
	shares, err := Split(secret, 1, 4)
	require.NoError(t, err)

	for _, share := range shares {
		assert.Equal(t, secret, share)
	}

	// Copies must not alias the caller's secret or each other.
	shares[0][0] ^= 0xFF
	assert.Equal(t, byte('o'), secret[0])
	assert.NotEqual(t, shares[0], shares[1])
}

func TestSplit_Conjunction(t *testing.T) {
	secret := randomSecret(t, 16)
	shares, err := Split(secret, 3, 3)
	require.NoError(t, err)

	acc := make([]byte, len(secret))
	for _, share := range shares {
		for i := range acc {
			acc[i] ^= share[i]
		}
	}
	assert.Equal(t, secret, acc)
}

func TestSplit_EmptySecret(t *testing.T) {
	_, err := Split(nil, 2, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSplit_SharesDifferAcrossCalls(t *testing.T) {
	secret := randomSecret(t, 32)
	a, err := Split(secret, 2, 3)
	require.NoError(t, err)
	b, err := Split(secret, 2, 3)
	require.NoError(t, err)
	assert.NotEqual(t, a[0], b[0])
}

func TestRoundTrip_AllThresholds(t *testing.T) {
	r := mrand.New(mrand.NewSource(1))
	secret := randomSecret(t, 16)

	for n := 1; n <= 64; n++ {
		for k := 1; k <= n; k++ {
			shares, err := Split(secret, k, n)
			require.NoError(t, err, "k=%d n=%d", k, n)

			recovered, err := Combine(shares, k, n)
			require.NoError(t, err, "k=%d n=%d", k, n)
			require.Equal(t, secret, recovered, "k=%d n=%d", k, n)

			recovered, err = Combine(randomSubset(r, shares, k), k, n)
			require.NoError(t, err, "k=%d n=%d subset", k, n)
			require.Equal(t, secret, recovered, "k=%d n=%d subset", k, n)
		}
	}
}

func TestCombine_EverySubset(t *testing.T) {
	secret := randomSecret(t, 24)

	for n := 1; n <= 6; n++ {
		for k := 1; k <= n; k++ {
			shares, err := Split(secret, k, n)
			require.NoError(t, err)

			for mask := uint(0); mask < 1<<uint(n); mask++ {
				count := bits.OnesCount(mask)
				recovered, err := Combine(subset(shares, mask), k, n)
				if count >= k {
					require.NoError(t, err, "k=%d n=%d mask=%b", k, n, mask)
					require.Equal(t, secret, recovered, "k=%d n=%d mask=%b", k, n, mask)
				} else {
					require.ErrorIs(t, err, ErrInsufficientShares, "k=%d n=%d mask=%b", k, n, mask)
				}
			}
		}
	}
}

func TestCombine_InvalidVectors(t *testing.T) {
	secret := randomSecret(t, 8)
	shares, err := Split(secret, 2, 3)
	require.NoError(t, err)

	t.Run("wrong slot count", func(t *testing.T) {
		_, err := Combine(shares[:2], 2, 3)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("mismatched lengths", func(t *testing.T) {
		bad := [][]byte{shares[0], shares[1][:4], nil}
		_, err := Combine(bad, 2, 3)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("empty share", func(t *testing.T) {
		bad := [][]byte{shares[0], {}, nil}
		_, err := Combine(bad, 2, 3)
		assert.ErrorIs(t, err, ErrOutOfRange)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		_, err := Combine(shares, 4, 3)
		assert.ErrorIs(t, err, ErrOutOfRange)
	})
}

func TestCombine_WrongShareYieldsWrongSecret(t *testing.T) {
	secret := randomSecret(t, 32)
	shares, err := Split(secret, 2, 3)
	require.NoError(t, err)

	tampered := [][]byte{shares[0], randomSecret(t, 32), nil}
	recovered, err := Combine(tampered, 2, 3)
	require.NoError(t, err)
	assert.NotEqual(t, secret, recovered)
}

func TestReshare_Stability(t *testing.T) {
	secret := randomSecret(t, 32)

	for _, cfg := range [][2]int{{1, 1}, {1, 4}, {2, 3}, {3, 5}, {4, 4}, {5, 20}, {2, 64}} {
		k, n := cfg[0], cfg[1]
		shares, err := Split(secret, k, n)
		require.NoError(t, err)

		var first, second [][]byte
		if k == n {
			first, second = shares, shares
		} else {
			firstMask := uint(1)<<uint(k) - 1
			secondMask := firstMask << uint(n-k)
			first, second = subset(shares, firstMask), subset(shares, secondMask)
		}

		v1, err := Reshare(first, k, n)
		require.NoError(t, err, "k=%d n=%d", k, n)
		v2, err := Reshare(second, k, n)
		require.NoError(t, err, "k=%d n=%d", k, n)

		for i := range v1 {
			require.NotNil(t, v1[i])
			require.NotNil(t, v2[i])
		}

		s1, err := Combine(v1, k, n)
		require.NoError(t, err)
		s2, err := Combine(v2, k, n)
		require.NoError(t, err)
		assert.Equal(t, secret, s1, "k=%d n=%d", k, n)
		assert.Equal(t, secret, s2, "k=%d n=%d", k, n)

		if k == 1 || k == n {
			assert.Equal(t, v1, v2, "deterministic modes must reshare identically")
		}
	}
}

func TestReshare_RestoresOriginalShares(t *testing.T) {
	secret := randomSecret(t, 32)
	shares, err := Split(secret, 3, 7)
	require.NoError(t, err)

	full, err := Reshare(subset(shares, 0b1010100), 3, 7)
	require.NoError(t, err)
	for i := range shares {
		assert.True(t, bytes.Equal(shares[i], full[i]), "slot %d", i)
	}
}

func TestReshare_PartialConjunction(t *testing.T) {
	secret := randomSecret(t, 16)
	shares, err := Split(secret, 3, 3)
	require.NoError(t, err)

	_, err = Reshare(subset(shares, 0b011), 3, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialConjunction)
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestReshare_Insufficient(t *testing.T) {
	secret := randomSecret(t, 16)
	shares, err := Split(secret, 3, 5)
	require.NoError(t, err)

	_, err = Reshare(subset(shares, 0b00011), 3, 5)
	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.False(t, errors.Is(err, ErrPartialConjunction))
}

func TestTag(t *testing.T) {
	secret := randomSecret(t, 8)
	shares, err := Split(secret, 2, 20)
	require.NoError(t, err)
	shares[3] = nil

	tagged := Tag(shares, 20)
	require.Len(t, tagged, 20)
	assert.Nil(t, tagged[3])
	for i, share := range tagged {
		if share == nil {
			continue
		}
		assert.Equal(t, i+1, share.Index)
		assert.Equal(t, 8, share.Bits)
		assert.NoError(t, share.Validate())
		assert.NotContains(t, share.String(), string(share.Value))
	}
}

func TestShare_Validate(t *testing.T) {
	tests := []struct {
		name  string
		share Share
		valid bool
	}{
		{"valid", Share{Index: 3, Bits: 4, Value: []byte{1}}, true},
		{"zero index", Share{Index: 0, Bits: 4, Value: []byte{1}}, false},
		{"index outside field", Share{Index: 16, Bits: 4, Value: []byte{1}}, false},
		{"unsupported width", Share{Index: 1, Bits: 3, Value: []byte{1}}, false},
		{"empty value", Share{Index: 1, Bits: 8}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.share.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrOutOfRange)
			}
		})
	}
}

func BenchmarkSplit(b *testing.B) {
	secret := make([]byte, 32)
	for i := 0; i < b.N; i++ {
		_, _ = Split(secret, 3, 5)
	}
}

func BenchmarkReshare(b *testing.B) {
	secret := make([]byte, 32)
	shares, _ := Split(secret, 3, 5)
	partial := subset(shares, 0b10101)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Reshare(partial, 3, 5)
	}
}
