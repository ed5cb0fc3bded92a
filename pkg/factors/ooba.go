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
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

const (
	// TypeOOBA is the factor type of an out-of-band authentication code
	TypeOOBA = "ooba"

	// DefaultOOBALength is the default code length
	DefaultOOBALength = 6

	oobaTargetSize = 32
	oobaAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	oobaPurpose    = "mfkdf2:factor:ooba"
)

var (
	oobaKeyAlgorithms = []jose.KeyAlgorithm{jose.RSA_OAEP_256, jose.ECDH_ES_A256KW}
	oobaContentEnc    = []jose.ContentEncryption{jose.A256GCM}
)

// OOBAOptions configures an out-of-band factor
type OOBAOptions struct {
	// ID defaults to "ooba"
	ID string

	// Key is the public JWK of the service that delivers codes (by SMS,
	// email or push). RSA keys use RSA-OAEP-256, EC keys ECDH-ES+A256KW,
	// unless the key names its own algorithm.
	Key *jose.JSONWebKey

	// Length is the code length, 1 to 32. Defaults to 6.
	Length int

	// Params are passed through to the delivery service with every code,
	// for example the destination phone number
	Params map[string]any
}

// oobaParams holds the delivery key, the next code encrypted to it, and
// the target masked with that code
type oobaParams struct {
	Key    jose.JSONWebKey `json:"key"`
	Length int             `json:"length"`
	Params map[string]any  `json:"params,omitempty"`
	Next   string          `json:"next"`
	Pad    []byte          `json:"pad"`
}

// OOBA sets up an out-of-band factor. Each params value carries the next
// code encrypted to the delivery service, which decrypts and sends it to
// the user.
func OOBA(opts OOBAOptions) (*mfkdf.SetupFactor, error) {
	if opts.ID == "" {
		opts.ID = TypeOOBA
	}
	if opts.Length == 0 {
		opts.Length = DefaultOOBALength
	}
	if opts.Length < 1 || opts.Length > 32 {
		return nil, fmt.Errorf("%w: code length must be between 1 and 32, got %d", ErrInvalidOptions, opts.Length)
	}
	if opts.Key == nil || !opts.Key.Valid() || !opts.Key.IsPublic() {
		return nil, fmt.Errorf("%w: a valid public JWK is required", ErrInvalidOptions)
	}
	if _, err := oobaAlgorithm(opts.Key); err != nil {
		return nil, err
	}

	target := make([]byte, oobaTargetSize)
	if _, err := rand.Read(target); err != nil {
		return nil, fmt.Errorf("failed to generate ooba target: %w", err)
	}
	p := oobaParams{Key: *opts.Key, Length: opts.Length, Params: opts.Params}

	return &mfkdf.SetupFactor{
		Type:   TypeOOBA,
		ID:     opts.ID,
		Data:   target,
		Params: oobaNext(target, p),
	}, nil
}

// oobaNext draws a new code, encrypts it for the delivery service and
// masks target with it
func oobaNext(target []byte, p oobaParams) mfkdf.ParamsFunc {
	return func(context.Context, mfkdf.ParamsContext) (json.RawMessage, error) {
		code, err := randomCode(p.Length)
		if err != nil {
			return nil, err
		}
		payload := make(map[string]any, len(p.Params)+1)
		for k, v := range p.Params {
			payload[k] = v
		}
		payload["code"] = code
		plaintext, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		next, err := encryptJWE(&p.Key, plaintext)
		if err != nil {
			return nil, err
		}
		mask, err := kdf.Expand([]byte(code), nil, oobaPurpose, oobaTargetSize)
		if err != nil {
			return nil, err
		}
		p.Next = next
		p.Pad = xorBytes(target, mask)
		return json.Marshal(p)
	}
}

// DeriveOOBA derives an out-of-band factor from the code the user received
func DeriveOOBA(code string) mfkdf.DeriveFactor {
	return func(_ context.Context, in *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
		var p oobaParams
		if err := json.Unmarshal(in.Params, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		if len(p.Pad) != oobaTargetSize {
			return nil, fmt.Errorf("%w: ooba pad must be %d bytes", ErrInvalidParams, oobaTargetSize)
		}
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			return nil, fmt.Errorf("%w: code cannot be empty", ErrInvalidInput)
		}
		mask, err := kdf.Expand([]byte(code), nil, oobaPurpose, oobaTargetSize)
		if err != nil {
			return nil, err
		}
		target := xorBytes(p.Pad, mask)
		return &mfkdf.DerivedFactor{
			Type:   TypeOOBA,
			Data:   target,
			Params: oobaNext(target, p),
		}, nil
	}
}

// OOBANext returns the encrypted next code stored in an ooba slot
func OOBANext(f *mfkdf.Factor) (string, error) {
	if f == nil || f.Type != TypeOOBA {
		return "", fmt.Errorf("%w: not an ooba factor", ErrInvalidParams)
	}
	var p oobaParams
	if err := json.Unmarshal(f.Params, &p); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return p.Next, nil
}

// DecryptOOBA is the delivery service's side: it decrypts a next value
// with the private key and returns the code and the pass-through params
func DecryptOOBA(next string, key *jose.JSONWebKey) (string, map[string]any, error) {
	obj, err := jose.ParseEncrypted(next, oobaKeyAlgorithms, oobaContentEnc)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	plaintext, err := obj.Decrypt(key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decrypt ooba code: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	code, ok := payload["code"].(string)
	if !ok {
		return "", nil, fmt.Errorf("%w: payload has no code", ErrInvalidParams)
	}
	delete(payload, "code")
	return code, payload, nil
}

func oobaAlgorithm(key *jose.JSONWebKey) (jose.KeyAlgorithm, error) {
	if key.Algorithm != "" {
		return jose.KeyAlgorithm(key.Algorithm), nil
	}
	switch key.Key.(type) {
	case *rsa.PublicKey:
		return jose.RSA_OAEP_256, nil
	case *ecdsa.PublicKey:
		return jose.ECDH_ES_A256KW, nil
	default:
		return "", fmt.Errorf("%w: unsupported JWK key type %T", ErrInvalidOptions, key.Key)
	}
}

func encryptJWE(key *jose.JSONWebKey, plaintext []byte) (string, error) {
	alg, err := oobaAlgorithm(key)
	if err != nil {
		return "", err
	}
	enc, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{Algorithm: alg, Key: key}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create JWE encrypter: %w", err)
	}
	obj, err := enc.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt ooba code: %w", err)
	}
	return obj.CompactSerialize()
}

func randomCode(length int) (string, error) {
	limit := big.NewInt(int64(len(oobaAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate ooba code: %w", err)
		}
		b[i] = oobaAlphabet[n.Int64()]
	}
	return string(b), nil
}
