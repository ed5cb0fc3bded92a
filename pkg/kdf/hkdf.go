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

package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF implements KDF using HKDF (RFC 5869). It is only appropriate when the
// secret already carries full entropy, which is always true of a policy's
// root secret.
type HKDF struct{}

// NewHKDF creates a new HKDF KDF
func NewHKDF() *HKDF {
	return &HKDF{}
}

// DeriveKey derives a key using HKDF with an empty info string
func (h *HKDF) DeriveKey(secret, salt []byte, size int, params *Params) ([]byte, error) {
	if err := h.ValidateParams(params); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrInvalidIKM
	}
	hash, err := hashFor(params.Digest)
	if err != nil {
		return nil, err
	}
	if size <= 0 || size > 255*hash.Size() {
		return nil, ErrInvalidKeyLength
	}

	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(hash.New, secret, salt, nil), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Algorithm returns the KDF algorithm
func (h *HKDF) Algorithm() Algorithm {
	return AlgorithmHKDF
}

// ValidateParams validates HKDF parameters
func (h *HKDF) ValidateParams(params *Params) error {
	if params == nil || params.Algorithm != AlgorithmHKDF {
		return ErrUnsupportedAlgorithm
	}
	_, err := hashFor(params.Digest)
	return err
}

// Expand derives size bytes from ikm with HKDF-SHA256, binding the output to
// salt and the purpose string info. Distinct purposes yield independent
// values from the same key material.
func Expand(ikm, salt []byte, info string, size int) ([]byte, error) {
	if len(ikm) == 0 {
		return nil, ErrInvalidIKM
	}
	if size <= 0 || size > 255*sha256.Size {
		return nil, ErrInvalidKeyLength
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}
