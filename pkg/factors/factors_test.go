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
	"context"
	"testing"

	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, factors ...*mfkdf.SetupFactor) *mfkdf.DerivedKey {
	t.Helper()
	dk, err := mfkdf.Setup(context.Background(), factors, mfkdf.WithKDF(*kdf.DefaultParams(kdf.AlgorithmHKDF)))
	require.NoError(t, err)
	return dk
}

func derive(policy *mfkdf.Policy, inputs map[string]mfkdf.DeriveFactor) (*mfkdf.DerivedKey, error) {
	return mfkdf.Derive(context.Background(), policy, inputs)
}

func mustFactor(t *testing.T) func(*mfkdf.SetupFactor, error) *mfkdf.SetupFactor {
	return func(f *mfkdf.SetupFactor, err error) *mfkdf.SetupFactor {
		t.Helper()
		require.NoError(t, err)
		return f
	}
}

func TestPassword(t *testing.T) {
	must := mustFactor(t)
	dk := setup(t, must(Password("correct horse", PasswordOptions{})))
	assert.Equal(t, map[string]any{"length": 13}, dk.Outputs()["password"])

	got, err := derive(dk.Policy(), map[string]mfkdf.DeriveFactor{"password": DerivePassword("correct horse")})
	require.NoError(t, err)
	assert.Equal(t, dk.Key(), got.Key())

	_, err = derive(dk.Policy(), map[string]mfkdf.DeriveFactor{"password": DerivePassword("Correct horse")})
	assert.ErrorIs(t, err, mfkdf.ErrIntegrity)

	_, err = Password("", PasswordOptions{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	assert.ErrorIs(t, err, mfkdf.ErrRange)

	_, err = derive(dk.Policy(), map[string]mfkdf.DeriveFactor{"password": DerivePassword("")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestQuestion(t *testing.T) {
	must := mustFactor(t)
	dk := setup(t, must(Question("Fido the Dog!", QuestionOptions{ID: "pet", Question: "First pet's name?"})))

	f, _ := dk.Policy().Factor("pet")
	text, err := QuestionText(f)
	require.NoError(t, err)
	assert.Equal(t, "First pet's name?", text)

	for _, answer := range []string{"Fido the Dog!", "fido the dog", "  FIDO   THE\tDOG  "} {
		got, err := derive(dk.Policy(), map[string]mfkdf.DeriveFactor{"pet": DeriveQuestion(answer)})
		require.NoError(t, err, answer)
		assert.Equal(t, dk.Key(), got.Key())
		assert.Equal(t, "First pet's name?", got.Outputs()["pet"]["question"])
	}

	_, err = derive(dk.Policy(), map[string]mfkdf.DeriveFactor{"pet": DeriveQuestion("rex")})
	assert.ErrorIs(t, err, mfkdf.ErrIntegrity)

	_, err = Question("?!", QuestionOptions{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = QuestionText(&mfkdf.Factor{Type: TypePassword})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestUUID(t *testing.T) {
	must := mustFactor(t)
	dk := setup(t, must(UUID(UUIDOptions{})))

	code, ok := dk.Outputs()["uuid"]["uuid"].(string)
	require.True(t, ok)
	got, err := derive(dk.Policy(), map[string]mfkdf.DeriveFactor{"uuid": DeriveUUID(code)})
	require.NoError(t, err)
	assert.Equal(t, dk.Key(), got.Key())

	_, err = UUID(UUIDOptions{UUID: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = derive(dk.Policy(), map[string]mfkdf.DeriveFactor{"uuid": DeriveUUID("not-a-uuid")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, mfkdf.ErrValidation)
}

func TestPasskeyAndPersisted(t *testing.T) {
	must := mustFactor(t)
	prf := make([]byte, PasskeySize)
	for i := range prf {
		prf[i] = byte(i)
	}
	dk := setup(t,
		must(Password("pw", PasswordOptions{})),
		must(Passkey(prf, PasskeyOptions{})))

	got, err := derive(dk.Policy(), map[string]mfkdf.DeriveFactor{
		"password": DerivePassword("pw"),
		"passkey":  DerivePasskey(prf),
	})
	require.NoError(t, err)
	assert.Equal(t, dk.Key(), got.Key())

	share, err := got.Persist("passkey")
	require.NoError(t, err)
	got, err = derive(dk.Policy(), map[string]mfkdf.DeriveFactor{
		"password": DerivePassword("pw"),
		"passkey":  Persisted(share),
	})
	require.NoError(t, err)
	assert.Equal(t, dk.Key(), got.Key())

	_, err = Passkey(prf[:31], PasskeyOptions{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = derive(dk.Policy(), map[string]mfkdf.DeriveFactor{
		"password": DerivePassword("pw"),
		"passkey":  Persisted(nil),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
