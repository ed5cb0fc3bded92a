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
	"fmt"

	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

const (
	// TypePasskey is the factor type of a WebAuthn PRF output
	TypePasskey = "passkey"

	// PasskeySize is the length of a WebAuthn PRF output
	PasskeySize = 32
)

// PasskeyOptions configures a passkey factor
type PasskeyOptions struct {
	// ID defaults to "passkey"
	ID string
}

// Passkey sets up a factor from the 32-byte output of the WebAuthn PRF
// extension. The relying party evaluates the PRF; this package only
// consumes its result.
func Passkey(prf []byte, opts PasskeyOptions) (*mfkdf.SetupFactor, error) {
	if len(prf) != PasskeySize {
		return nil, fmt.Errorf("%w: passkey secret must be %d bytes, got %d", ErrInvalidOptions, PasskeySize, len(prf))
	}
	id := opts.ID
	if id == "" {
		id = TypePasskey
	}
	return &mfkdf.SetupFactor{
		Type: TypePasskey,
		ID:   id,
		Data: append([]byte(nil), prf...),
	}, nil
}

// DerivePasskey derives a passkey factor
func DerivePasskey(prf []byte) mfkdf.DeriveFactor {
	return func(context.Context, *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
		if len(prf) != PasskeySize {
			return nil, fmt.Errorf("%w: passkey secret must be %d bytes, got %d", ErrInvalidInput, PasskeySize, len(prf))
		}
		return &mfkdf.DerivedFactor{Type: TypePasskey, Data: append([]byte(nil), prf...)}, nil
	}
}

// Persisted supplies a share saved with DerivedKey.Persist in place of the
// factor it belongs to
func Persisted(share []byte) mfkdf.DeriveFactor {
	return func(context.Context, *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
		if len(share) == 0 {
			return nil, fmt.Errorf("%w: persisted share is empty", ErrInvalidInput)
		}
		return &mfkdf.DerivedFactor{Type: mfkdf.TypePersisted, Data: append([]byte(nil), share...)}, nil
	}
}
