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

package factors

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hotpState(t *testing.T, policy *mfkdf.Policy, id string) hotpParams {
	t.Helper()
	f, _ := policy.Factor(id)
	require.NotNil(t, f)
	var p hotpParams
	require.NoError(t, json.Unmarshal(f.Params, &p))
	return p
}

func TestHOTP_RoundTrip(t *testing.T) {
	secret := []byte("hello world")
	must := mustFactor(t)
	dk := setup(t,
		must(Password("pw", PasswordOptions{})),
		must(HOTP(HOTPOptions{Secret: secret})))

	out := dk.Outputs()["hotp"]
	assert.Equal(t, secret, out["secret"])
	assert.True(t, strings.HasPrefix(out["uri"].(string), "otpauth://hotp/"))

	policy := dk.Policy()
	p := hotpState(t, policy, "hotp")
	assert.Equal(t, uint64(1), p.Counter)
	assert.Equal(t, 6, p.Digits)
	assert.NotContains(t, string(p.Pad), string(secret), "the secret is sealed")

	for counter := uint64(1); counter <= 3; counter++ {
		code, err := otpCode(secret, counter, "sha1", 6)
		require.NoError(t, err)
		got, err := derive(policy, map[string]mfkdf.DeriveFactor{
			"password": DerivePassword("pw"),
			"hotp":     DeriveHOTP(int(code)),
		})
		require.NoError(t, err)
		assert.Equal(t, dk.Key(), got.Key())

		policy = got.Policy()
		assert.Equal(t, counter+1, hotpState(t, policy, "hotp").Counter)
	}
}

func TestHOTP_WrongCode(t *testing.T) {
	secret := []byte("hello world")
	must := mustFactor(t)
	dk := setup(t,
		must(Password("pw", PasswordOptions{})),
		must(HOTP(HOTPOptions{Secret: secret})))

	code, err := otpCode(secret, 1, "sha1", 6)
	require.NoError(t, err)
	_, err = derive(dk.Policy(), map[string]mfkdf.DeriveFactor{
		"password": DerivePassword("pw"),
		"hotp":     DeriveHOTP(int((code + 1) % 1000000)),
	})
	assert.ErrorIs(t, err, mfkdf.ErrIntegrity)

	_, err = derive(dk.Policy(), map[string]mfkdf.DeriveFactor{
		"password": DerivePassword("pw"),
		"hotp":     DeriveHOTP(1000000),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHOTP_EightDigitSHA256(t *testing.T) {
	secret := []byte("12345678901234567890123456789012")
	must := mustFactor(t)
	dk := setup(t, must(HOTP(HOTPOptions{ID: "token", Secret: secret, Digits: 8, Hash: "sha256"})))

	code, err := otpCode(secret, 1, "sha256", 8)
	require.NoError(t, err)
	got, err := derive(dk.Policy(), map[string]mfkdf.DeriveFactor{"token": DeriveHOTP(int(code))})
	require.NoError(t, err)
	assert.Equal(t, dk.Key(), got.Key())
}

func TestHOTP_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts HOTPOptions
	}{
		{"short code", HOTPOptions{Digits: 5}},
		{"long code", HOTPOptions{Digits: 9}},
		{"unknown hash", HOTPOptions{Hash: "md5"}},
		{"empty secret", HOTPOptions{Secret: []byte{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HOTP(tt.opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestHOTP_RandomSecret(t *testing.T) {
	must := mustFactor(t)
	dk := setup(t, must(HOTP(HOTPOptions{})))
	secret, ok := dk.Outputs()["hotp"]["secret"].([]byte)
	require.True(t, ok)
	assert.Len(t, secret, defaultSecretSize)

	code, err := otpCode(secret, 1, "sha1", 6)
	require.NoError(t, err)
	got, err := derive(dk.Policy(), map[string]mfkdf.DeriveFactor{"hotp": DeriveHOTP(int(code))})
	require.NoError(t, err)
	assert.Equal(t, dk.Key(), got.Key())
}
