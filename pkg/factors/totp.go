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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jeremyhahn/go-mfkdf/pkg/crypto/aead"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

const (
	// TypeTOTP is the factor type of an RFC 6238 time-based OTP
	TypeTOTP = "totp"

	// DefaultTOTPStep is the default time step in seconds
	DefaultTOTPStep = 30

	// DefaultTOTPWindow is the default number of precomputed steps, one
	// month of 30 second steps
	DefaultTOTPWindow = 87600
)

// TOTPOptions configures a TOTP factor
type TOTPOptions struct {
	// ID defaults to "totp"
	ID string

	// Secret is the authenticator secret. 20 random bytes when nil.
	Secret []byte

	// Digits is the code length, 6 to 8. Defaults to 6.
	Digits int

	// Hash is sha1, sha256 or sha512. Defaults to sha1.
	Hash string

	// Step is the time step in seconds. Defaults to 30.
	Step int

	// Window is the number of steps after Time for which a code can be
	// used. The key must be derived at least once per window.
	Window int

	// Time is the current time. It is required.
	Time time.Time

	// Issuer and Label appear in the otpauth URI
	Issuer string
	Label  string
}

// totpParams is the persisted state of a TOTP slot. Offsets holds one
// 4-byte big-endian offset per step starting at Start (unix milliseconds),
// each mapping that step's code onto the target.
type totpParams struct {
	Start   int64  `json:"start"`
	Hash    string `json:"hash"`
	Digits  int    `json:"digits"`
	Step    int    `json:"step"`
	Window  int    `json:"window"`
	Pad     []byte `json:"pad"`
	Offsets []byte `json:"offsets"`
}

// TOTP sets up a TOTP factor
func TOTP(opts TOTPOptions) (*mfkdf.SetupFactor, error) {
	if opts.ID == "" {
		opts.ID = TypeTOTP
	}
	if opts.Digits == 0 {
		opts.Digits = defaultDigits
	}
	if opts.Hash == "" {
		opts.Hash = defaultOTPHash
	}
	if opts.Step == 0 {
		opts.Step = DefaultTOTPStep
	}
	if opts.Window == 0 {
		opts.Window = DefaultTOTPWindow
	}
	if opts.Issuer == "" {
		opts.Issuer = defaultIssuer
	}
	if opts.Label == "" {
		opts.Label = defaultLabel
	}
	if opts.Time.IsZero() {
		return nil, ErrTimeRequired
	}
	if err := checkDigits(opts.Digits); err != nil {
		return nil, err
	}
	if _, err := otpHash(opts.Hash); err != nil {
		return nil, err
	}
	if opts.Step < 1 || opts.Window < 1 {
		return nil, fmt.Errorf("%w: step and window must be positive", ErrInvalidOptions)
	}
	secret, err := randomSecret(opts.Secret)
	if err != nil {
		return nil, err
	}
	target, err := randomTarget(opts.Digits)
	if err != nil {
		return nil, err
	}
	start := opts.Time.UnixMilli()

	return &mfkdf.SetupFactor{
		Type: TypeTOTP,
		ID:   opts.ID,
		Data: targetBytes(target),
		Params: func(_ context.Context, pc mfkdf.ParamsContext) (json.RawMessage, error) {
			pad, err := aead.Seal(pc.Key, secret, []byte(pc.ID))
			if err != nil {
				return nil, err
			}
			return totpWindow(secret, target, totpParams{
				Start:  start,
				Hash:   opts.Hash,
				Digits: opts.Digits,
				Step:   opts.Step,
				Window: opts.Window,
				Pad:    pad,
			})
		},
		Output: func(context.Context) (map[string]any, error) {
			extra := url.Values{"period": {strconv.Itoa(opts.Step)}}
			return map[string]any{
				"type":   TypeTOTP,
				"secret": append([]byte(nil), secret...),
				"uri":    otpauthURI(TypeTOTP, opts.Issuer, opts.Label, secret, opts.Hash, opts.Digits, extra),
			}, nil
		},
	}, nil
}

// totpWindow precomputes the offsets for Window steps from p.Start
func totpWindow(secret []byte, target int64, p totpParams) (json.RawMessage, error) {
	m := modulus(p.Digits)
	first := totpCounter(p.Start, p.Step)
	p.Offsets = make([]byte, 4*p.Window)
	for i := 0; i < p.Window; i++ {
		code, err := otpCode(secret, uint64(first+int64(i)), p.Hash, p.Digits)
		if err != nil {
			return nil, err
		}
		binary.BigEndian.PutUint32(p.Offsets[4*i:], uint32(mod(target-code, m)))
	}
	return json.Marshal(p)
}

func totpCounter(unixMilli int64, step int) int64 {
	return unixMilli / 1000 / int64(step)
}

// TOTPDeriveOptions configures a TOTP derive
type TOTPDeriveOptions struct {
	// Time is the time the code was read. It is required.
	Time time.Time
}

// DeriveTOTP derives a TOTP factor from the code shown at opts.Time
func DeriveTOTP(code int, opts TOTPDeriveOptions) mfkdf.DeriveFactor {
	return func(_ context.Context, in *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
		if opts.Time.IsZero() {
			return nil, ErrTimeRequired
		}
		var p totpParams
		if err := json.Unmarshal(in.Params, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		if err := checkDigits(p.Digits); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		if p.Step < 1 || p.Window < 1 || len(p.Offsets) != 4*p.Window {
			return nil, fmt.Errorf("%w: malformed totp window", ErrInvalidParams)
		}
		m := modulus(p.Digits)
		if code < 0 || int64(code) >= m {
			return nil, fmt.Errorf("%w: code must have at most %d digits", ErrInvalidInput, p.Digits)
		}

		now := opts.Time.UnixMilli()
		index := totpCounter(now, p.Step) - totpCounter(p.Start, p.Step)
		if index < 0 || index >= int64(p.Window) {
			return nil, fmt.Errorf("%w: step %d of %d", ErrWindowExceeded, index, p.Window)
		}
		offset := int64(binary.BigEndian.Uint32(p.Offsets[4*index:]))
		target := mod(offset+int64(code), m)

		return &mfkdf.DerivedFactor{
			Type: TypeTOTP,
			Data: targetBytes(target),
			Params: func(_ context.Context, pc mfkdf.ParamsContext) (json.RawMessage, error) {
				secret, err := aead.Open(pc.Key, p.Pad, []byte(pc.ID))
				if err != nil {
					return nil, fmt.Errorf("failed to open totp secret: %w", err)
				}
				next := p
				next.Start = now
				return totpWindow(secret, target, next)
			},
		}, nil
	}
}
