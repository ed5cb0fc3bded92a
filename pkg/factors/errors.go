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
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

var (
	// ErrInvalidOptions indicates a setup option is out of range
	ErrInvalidOptions = fmt.Errorf("%w: invalid factor options", mfkdf.ErrRange)

	// ErrInvalidParams indicates the stored params of a slot cannot be read
	ErrInvalidParams = fmt.Errorf("%w: invalid factor params", mfkdf.ErrValidation)

	// ErrInvalidInput indicates a derive-side credential has the wrong form
	ErrInvalidInput = fmt.Errorf("%w: invalid factor input", mfkdf.ErrValidation)

	// ErrWindowExceeded indicates a TOTP derive happened outside the window
	// of precomputed offsets
	ErrWindowExceeded = fmt.Errorf("%w: totp window exceeded", mfkdf.ErrRange)

	// ErrTimeRequired indicates a time-based factor was used without a time
	ErrTimeRequired = errors.New("factors: time must be supplied")
)
