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

package aead

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func TestNew_KeySize(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{"valid", testKey(1), false},
		{"nil", nil, true},
		{"short", make([]byte, 16), true},
		{"long", make([]byte, 33), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSealOpen(t *testing.T) {
	plaintexts := [][]byte{
		{},
		[]byte("JBSWY3DPEHPK3PXP"),
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for _, pt := range plaintexts {
		sealed, err := Seal(testKey(7), pt, []byte("totp"))
		require.NoError(t, err)
		assert.Len(t, sealed, len(pt)+Overhead)

		opened, err := Open(testKey(7), sealed, []byte("totp"))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(pt, opened))
	}
}

func TestSeal_RandomNonce(t *testing.T) {
	c, err := New(testKey(3))
	require.NoError(t, err)

	a, err := c.Seal([]byte("secret"), nil)
	require.NoError(t, err)
	b, err := c.Seal([]byte("secret"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_Failures(t *testing.T) {
	sealed, err := Seal(testKey(9), []byte("secret"), []byte("id-1"))
	require.NoError(t, err)

	_, err = Open(testKey(8), sealed, []byte("id-1"))
	assert.ErrorIs(t, err, ErrAuthentication, "wrong key")

	_, err = Open(testKey(9), sealed, []byte("id-2"))
	assert.ErrorIs(t, err, ErrAuthentication, "wrong associated data")

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = Open(testKey(9), tampered, []byte("id-1"))
	assert.ErrorIs(t, err, ErrAuthentication, "tampered tag")

	_, err = Open(testKey(9), sealed[:Overhead-1], nil)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = Open(make([]byte, 5), sealed, nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
