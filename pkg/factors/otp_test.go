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
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPCode_RFC4226(t *testing.T) {
	secret := []byte("12345678901234567890")
	want := []int64{755224, 287082, 359152, 969429, 338314, 254676, 287922, 162583, 399871, 520489}
	for counter, code := range want {
		got, err := otpCode(secret, uint64(counter), "sha1", 6)
		require.NoError(t, err)
		assert.Equal(t, code, got, "counter %d", counter)
	}
}

func TestOTPCode_RFC6238(t *testing.T) {
	// T = 59s, step 30, counter 1
	tests := []struct {
		hash   string
		secret string
		want   int64
	}{
		{"sha1", "12345678901234567890", 94287082},
		{"sha256", "12345678901234567890123456789012", 46119246},
		{"sha512", "1234567890123456789012345678901234567890123456789012345678901234", 90693936},
	}
	for _, tt := range tests {
		t.Run(tt.hash, func(t *testing.T) {
			got, err := otpCode([]byte(tt.secret), 1, tt.hash, 8)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := otpCode([]byte("x"), 1, "md5", 6)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestMod(t *testing.T) {
	assert.Equal(t, int64(999990), mod(-10, 1000000))
	assert.Equal(t, int64(5), mod(5, 1000000))
	assert.Equal(t, int64(0), mod(1000000, 1000000))
}

func TestTargetBytes(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x0f, 0x42, 0x3f}, targetBytes(999999))
}

func TestCheckDigits(t *testing.T) {
	for _, d := range []int{6, 7, 8} {
		assert.NoError(t, checkDigits(d))
	}
	for _, d := range []int{0, 5, 9} {
		assert.ErrorIs(t, checkDigits(d), ErrInvalidOptions)
	}
}

func TestOTPAuthURI(t *testing.T) {
	raw := otpauthURI(TypeHOTP, "ACME", "alice@example.com", []byte("hello world"), "sha1", 6, url.Values{"counter": {"1"}})
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "hotp", u.Host)
	assert.Equal(t, "/ACME:alice@example.com", u.Path)
	q := u.Query()
	assert.Equal(t, "NBSWY3DPEB3W64TMMQ", q.Get("secret"))
	assert.Equal(t, "ACME", q.Get("issuer"))
	assert.Equal(t, "SHA1", q.Get("algorithm"))
	assert.Equal(t, "6", q.Get("digits"))
	assert.Equal(t, "1", q.Get("counter"))
}

func TestParseCode(t *testing.T) {
	n, err := ParseCode("012345")
	require.NoError(t, err)
	assert.Equal(t, 12345, n)

	for _, bad := range []string{"", "12a456", "-1"} {
		_, err := ParseCode(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}
