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

package mfkdf

import (
	"fmt"

	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
)

// HKDF info prefixes. Each derived value uses its own purpose so a pad,
// a hint and a params key of the same factor are unrelated.
const (
	purposePad       = "mfkdf2:factor:pad:"
	purposeParams    = "mfkdf2:factor:params:"
	purposeHint      = "mfkdf2:factor:hint:"
	purposeIntegrity = "mfkdf2:integrity"
)

// stretch turns raw factor material into size bytes bound to the factor's
// salt and id
func stretch(data, salt []byte, id string, size int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: factor %q has no material", ErrRange, id)
	}
	return kdf.Expand(data, salt, purposePad+id, size)
}

// paramsKey derives the key a factor uses to protect its own params. It is
// computed from the output key so it never changes across reconstitution.
func paramsKey(key, salt []byte, id string) ([]byte, error) {
	return kdf.Expand(key, salt, purposeParams+id, 32)
}

// xorPad returns share XOR material. A material shorter than the share is
// left padded with zero bytes; a longer one is rejected. The same operation
// masks a share into a pad and unmasks a pad into a share.
func xorPad(share, material []byte) ([]byte, error) {
	if len(material) > len(share) {
		return nil, fmt.Errorf("%w: factor material is %d bytes, share is %d", ErrRange, len(material), len(share))
	}
	out := make([]byte, len(share))
	offset := len(share) - len(material)
	copy(out, share[:offset])
	for i, b := range material {
		out[offset+i] = share[offset+i] ^ b
	}
	return out, nil
}
