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
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/json"
	"fmt"

	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

const (
	// TypeHMACSHA1 is the factor type of a YubiKey-style HMAC-SHA1
	// challenge-response
	TypeHMACSHA1 = "hmacsha1"

	// HMACSHA1SecretSize is the size of the HMAC secret
	HMACSHA1SecretSize = 20

	hmacChallengeSize = 64
)

// HMACSHA1Options configures an HMAC-SHA1 challenge-response factor
type HMACSHA1Options struct {
	// ID defaults to "hmacsha1"
	ID string

	// Secret is the 20-byte HMAC secret to program into the token. Random
	// when nil.
	Secret []byte
}

// hmacParams holds the next challenge and the secret masked with the
// token's response to it
type hmacParams struct {
	Challenge []byte `json:"challenge"`
	Pad       []byte `json:"pad"`
}

// HMACSHA1 sets up a challenge-response factor. The secret is returned in
// the output so it can be programmed into the hardware token.
func HMACSHA1(opts HMACSHA1Options) (*mfkdf.SetupFactor, error) {
	if opts.ID == "" {
		opts.ID = TypeHMACSHA1
	}
	secret := opts.Secret
	if secret == nil {
		secret = make([]byte, HMACSHA1SecretSize)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate hmac secret: %w", err)
		}
	}
	if len(secret) != HMACSHA1SecretSize {
		return nil, fmt.Errorf("%w: hmac secret must be %d bytes, got %d", ErrInvalidOptions, HMACSHA1SecretSize, len(secret))
	}
	secret = append([]byte(nil), secret...)

	return &mfkdf.SetupFactor{
		Type:   TypeHMACSHA1,
		ID:     opts.ID,
		Data:   secret,
		Params: hmacNext(secret),
		Output: func(context.Context) (map[string]any, error) {
			return map[string]any{"secret": append([]byte(nil), secret...)}, nil
		},
	}, nil
}

// hmacNext issues a fresh challenge for secret
func hmacNext(secret []byte) mfkdf.ParamsFunc {
	return func(context.Context, mfkdf.ParamsContext) (json.RawMessage, error) {
		challenge := make([]byte, hmacChallengeSize)
		if _, err := rand.Read(challenge); err != nil {
			return nil, fmt.Errorf("failed to generate challenge: %w", err)
		}
		return json.Marshal(hmacParams{
			Challenge: challenge,
			Pad:       xorBytes(secret, HMACSHA1Response(secret, challenge)),
		})
	}
}

// HMACSHA1Response computes the token's response to challenge
func HMACSHA1Response(secret, challenge []byte) []byte {
	mac := hmac.New(sha1.New, secret)
	mac.Write(challenge)
	return mac.Sum(nil)
}

// HMACSHA1Challenge returns the challenge stored in an hmacsha1 slot, to
// be sent to the token before deriving
func HMACSHA1Challenge(f *mfkdf.Factor) ([]byte, error) {
	if f == nil || f.Type != TypeHMACSHA1 {
		return nil, fmt.Errorf("%w: not an hmacsha1 factor", ErrInvalidParams)
	}
	var p hmacParams
	if err := json.Unmarshal(f.Params, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return p.Challenge, nil
}

// DeriveHMACSHA1 derives a challenge-response factor from the token's
// response to the stored challenge
func DeriveHMACSHA1(response []byte) mfkdf.DeriveFactor {
	return func(_ context.Context, in *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
		var p hmacParams
		if err := json.Unmarshal(in.Params, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		if len(p.Pad) != HMACSHA1SecretSize {
			return nil, fmt.Errorf("%w: hmac pad must be %d bytes", ErrInvalidParams, HMACSHA1SecretSize)
		}
		if len(response) != sha1.Size {
			return nil, fmt.Errorf("%w: response must be %d bytes, got %d", ErrInvalidInput, sha1.Size, len(response))
		}
		secret := xorBytes(p.Pad, response)
		return &mfkdf.DerivedFactor{
			Type:   TypeHMACSHA1,
			Data:   secret,
			Params: hmacNext(secret),
		}, nil
	}
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
