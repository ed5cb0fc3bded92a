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

	"github.com/jeremyhahn/go-mfkdf/internal/password"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

// TypePassword is the factor type of a password
const TypePassword = "password"

// PasswordOptions configures a password factor
type PasswordOptions struct {
	// ID defaults to "password"
	ID string
}

// Password sets up a password factor
func Password(pw string, opts PasswordOptions) (*mfkdf.SetupFactor, error) {
	secret, err := password.NewClearPasswordFromString(pw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	defer secret.Clear()

	id := opts.ID
	if id == "" {
		id = TypePassword
	}
	length := secret.Len()
	return &mfkdf.SetupFactor{
		Type: TypePassword,
		ID:   id,
		Data: secret.Bytes(),
		Output: func(context.Context) (map[string]any, error) {
			return map[string]any{"length": length}, nil
		},
	}, nil
}

// DerivePassword derives a password factor
func DerivePassword(pw string) mfkdf.DeriveFactor {
	return func(context.Context, *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
		secret, err := password.NewClearPasswordFromString(pw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		defer secret.Clear()
		return &mfkdf.DerivedFactor{Type: TypePassword, Data: secret.Bytes()}, nil
	}
}
