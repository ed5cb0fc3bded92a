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
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jeremyhahn/go-mfkdf/pkg/crypto/aead"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

// TypeHOTP is the factor type of an RFC 4226 counter-based OTP
const TypeHOTP = "hotp"

// HOTPOptions configures an HOTP factor
type HOTPOptions struct {
	// ID defaults to "hotp"
	ID string

	// Secret is the authenticator secret. 20 random bytes when nil.
	Secret []byte

	// Digits is the code length, 6 to 8. Defaults to 6.
	Digits int

	// Hash is sha1, sha256 or sha512. Defaults to sha1.
	Hash string

	// Issuer and Label appear in the otpauth URI
	Issuer string
	Label  string
}

// hotpParams is the persisted state of an HOTP slot. The factor material is
// a random target; offset maps the next expected code onto it. Pad is the
// authenticator secret sealed under the slot's params key, which lets
// Derive compute the next offset.
type hotpParams struct {
	Hash    string `json:"hash"`
	Digits  int    `json:"digits"`
	Counter uint64 `json:"counter"`
	Offset  int64  `json:"offset"`
	Pad     []byte `json:"pad"`
}

// HOTP sets up an HOTP factor. The target is drawn at random so the
// material does not depend on the authenticator secret.
func HOTP(opts HOTPOptions) (*mfkdf.SetupFactor, error) {
	if opts.ID == "" {
		opts.ID = TypeHOTP
	}
	if opts.Digits == 0 {
		opts.Digits = defaultDigits
	}
	if opts.Hash == "" {
		opts.Hash = defaultOTPHash
	}
	if opts.Issuer == "" {
		opts.Issuer = defaultIssuer
	}
	if opts.Label == "" {
		opts.Label = defaultLabel
	}
	if err := checkDigits(opts.Digits); err != nil {
		return nil, err
	}
	if _, err := otpHash(opts.Hash); err != nil {
		return nil, err
	}
	secret, err := randomSecret(opts.Secret)
	if err != nil {
		return nil, err
	}
	target, err := randomTarget(opts.Digits)
	if err != nil {
		return nil, err
	}

	return &mfkdf.SetupFactor{
		Type: TypeHOTP,
		ID:   opts.ID,
		Data: targetBytes(target),
		Params: func(_ context.Context, pc mfkdf.ParamsContext) (json.RawMessage, error) {
			pad, err := aead.Seal(pc.Key, secret, []byte(pc.ID))
			if err != nil {
				return nil, err
			}
			return hotpNext(secret, target, hotpParams{Hash: opts.Hash, Digits: opts.Digits, Pad: pad})
		},
		Output: func(context.Context) (map[string]any, error) {
			extra := url.Values{"counter": {"1"}}
			return map[string]any{
				"type":   TypeHOTP,
				"secret": append([]byte(nil), secret...),
				"uri":    otpauthURI(TypeHOTP, opts.Issuer, opts.Label, secret, opts.Hash, opts.Digits, extra),
			}, nil
		},
	}, nil
}

// hotpNext advances the counter and maps the code at the new counter onto
// target
func hotpNext(secret []byte, target int64, p hotpParams) (json.RawMessage, error) {
	p.Counter++
	code, err := otpCode(secret, p.Counter, p.Hash, p.Digits)
	if err != nil {
		return nil, err
	}
	p.Offset = mod(target-code, modulus(p.Digits))
	return json.Marshal(p)
}

// DeriveHOTP derives an HOTP factor from the code shown by the
// authenticator at the slot's current counter
func DeriveHOTP(code int) mfkdf.DeriveFactor {
	return func(_ context.Context, in *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
		var p hotpParams
		if err := json.Unmarshal(in.Params, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		if err := checkDigits(p.Digits); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		m := modulus(p.Digits)
		if code < 0 || int64(code) >= m {
			return nil, fmt.Errorf("%w: code must have at most %d digits", ErrInvalidInput, p.Digits)
		}
		target := mod(p.Offset+int64(code), m)

		return &mfkdf.DerivedFactor{
			Type: TypeHOTP,
			Data: targetBytes(target),
			Params: func(_ context.Context, pc mfkdf.ParamsContext) (json.RawMessage, error) {
				secret, err := aead.Open(pc.Key, p.Pad, []byte(pc.ID))
				if err != nil {
					return nil, fmt.Errorf("failed to open hotp secret: %w", err)
				}
				return hotpNext(secret, target, p)
			},
		}, nil
	}
}

// ParseCode converts a code typed by a user into an integer
func ParseCode(code string) (int, error) {
	n, err := strconv.Atoi(code)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a numeric code", ErrInvalidInput, code)
	}
	return n, nil
}
