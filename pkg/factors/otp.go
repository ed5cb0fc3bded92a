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
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash"
	"math/big"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultDigits     = 6
	defaultOTPHash    = "sha1"
	defaultIssuer     = "MFKDF"
	defaultLabel      = "mfkdf.com"
	defaultSecretSize = 20
)

// otpHash returns the HMAC hash for an otpauth algorithm name
func otpHash(name string) (func() hash.Hash, error) {
	switch strings.ToLower(name) {
	case "", "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: unsupported hash %q", ErrInvalidOptions, name)
	}
}

// otpCode computes an RFC 4226 HOTP value
func otpCode(secret []byte, counter uint64, hashName string, digits int) (int64, error) {
	h, err := otpHash(hashName)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)
	mac := hmac.New(h, secret)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0F
	trunc := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7FFFFFFF
	return int64(trunc) % modulus(digits), nil
}

func modulus(digits int) int64 {
	m := int64(1)
	for i := 0; i < digits; i++ {
		m *= 10
	}
	return m
}

// mod returns n mod m in [0, m)
func mod(n, m int64) int64 {
	return ((n % m) + m) % m
}

// randomTarget draws a uniform OTP target in [0, 10^digits)
func randomTarget(digits int) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(modulus(digits)))
	if err != nil {
		return 0, fmt.Errorf("failed to draw otp target: %w", err)
	}
	return n.Int64(), nil
}

// targetBytes is the factor material of an OTP target
func targetBytes(target int64) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(target))
	return b
}

func checkDigits(digits int) error {
	if digits < 6 || digits > 8 {
		return fmt.Errorf("%w: digits must be between 6 and 8, got %d", ErrInvalidOptions, digits)
	}
	return nil
}

func randomSecret(secret []byte) ([]byte, error) {
	if secret != nil {
		if len(secret) == 0 {
			return nil, fmt.Errorf("%w: secret cannot be empty", ErrInvalidOptions)
		}
		return append([]byte(nil), secret...), nil
	}
	s := make([]byte, defaultSecretSize)
	if _, err := rand.Read(s); err != nil {
		return nil, fmt.Errorf("failed to generate otp secret: %w", err)
	}
	return s, nil
}

// otpauthURI builds a provisioning URI for authenticator apps
func otpauthURI(kind, issuer, label string, secret []byte, hashName string, digits int, extra url.Values) string {
	q := url.Values{}
	q.Set("secret", base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret))
	q.Set("issuer", issuer)
	q.Set("algorithm", strings.ToUpper(hashName))
	q.Set("digits", strconv.Itoa(digits))
	for k, v := range extra {
		q[k] = v
	}
	u := url.URL{
		Scheme:   "otpauth",
		Host:     kind,
		Path:     "/" + issuer + ":" + label,
		RawQuery: q.Encode(),
	}
	return u.String()
}
