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

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

// TypeUUID is the factor type of a UUID recovery code
const TypeUUID = "uuid"

// UUIDOptions configures a UUID recovery code factor
type UUIDOptions struct {
	// ID defaults to "uuid"
	ID string

	// UUID is the recovery code. A random version 4 UUID is used when empty.
	UUID string
}

// UUID sets up a recovery code factor. The code is returned in the
// factor's output and must be shown to the user once.
func UUID(opts UUIDOptions) (*mfkdf.SetupFactor, error) {
	var code uuid.UUID
	if opts.UUID == "" {
		var err error
		if code, err = uuid.NewRandom(); err != nil {
			return nil, fmt.Errorf("failed to generate recovery code: %w", err)
		}
	} else {
		var err error
		if code, err = uuid.Parse(opts.UUID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
	}

	id := opts.ID
	if id == "" {
		id = TypeUUID
	}
	data := code[:]
	return &mfkdf.SetupFactor{
		Type: TypeUUID,
		ID:   id,
		Data: append([]byte(nil), data...),
		Output: func(context.Context) (map[string]any, error) {
			return map[string]any{"uuid": code.String()}, nil
		},
	}, nil
}

// DeriveUUID derives a recovery code factor
func DeriveUUID(code string) mfkdf.DeriveFactor {
	return func(context.Context, *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
		u, err := uuid.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return &mfkdf.DerivedFactor{
			Type: TypeUUID,
			Data: append([]byte(nil), u[:]...),
			Output: func(context.Context) (map[string]any, error) {
				return map[string]any{"uuid": u.String()}, nil
			},
		}, nil
	}
}
