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

package secretsharing

import (
	"fmt"
)

// Share is the self-describing view of one polynomial share: the index the
// polynomial was evaluated at and the field width used for its symbols.
// The raw share bytes carry neither; both follow from the slot position and
// the share count.
type Share struct {
	// Index is the evaluation point (1 to N)
	Index int

	// Bits is the symbol width of the field the share lives in
	Bits int

	// Value is the share data, one packed symbol stream as long as the secret
	Value []byte
}

// Tag returns the tagged view of an N-length share vector. Nil slots stay nil.
func Tag(shares [][]byte, total int) []*Share {
	width := FieldBits(total)
	tagged := make([]*Share, len(shares))
	for i, value := range shares {
		if value == nil {
			continue
		}
		tagged[i] = &Share{Index: i + 1, Bits: width, Value: value}
	}
	return tagged
}

// Validate checks if the share has valid parameters
func (s *Share) Validate() error {
	if s.Index < 1 || s.Index > MaxShares {
		return fmt.Errorf("%w: invalid share index: %d", ErrOutOfRange, s.Index)
	}
	if s.Bits != 4 && s.Bits != 8 {
		return fmt.Errorf("%w: invalid field width: %d", ErrOutOfRange, s.Bits)
	}
	if s.Index >= 1<<s.Bits {
		return fmt.Errorf("%w: index %d does not fit GF(2^%d)", ErrOutOfRange, s.Index, s.Bits)
	}
	if len(s.Value) == 0 {
		return fmt.Errorf("%w: share value is empty", ErrOutOfRange)
	}
	return nil
}

// String returns a representation of the share that omits its value.
func (s *Share) String() string {
	return fmt.Sprintf("Share{Index: %d, GF(2^%d), %d bytes}", s.Index, s.Bits, len(s.Value))
}
