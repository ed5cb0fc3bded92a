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
	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinPBKDF2Iterations is the minimum accepted iteration count
	MinPBKDF2Iterations = 100000

	// MinPBKDF2SaltLength is the minimum recommended salt length in bytes
	MinPBKDF2SaltLength = 16
)

// PBKDF2 implements KDF using PBKDF2 (RFC 8018)
type PBKDF2 struct{}

// NewPBKDF2 creates a new PBKDF2 KDF
func NewPBKDF2() *PBKDF2 {
	return &PBKDF2{}
}

// DeriveKey derives a key using PBKDF2
func (p *PBKDF2) DeriveKey(secret, salt []byte, size int, params *Params) ([]byte, error) {
	if err := p.ValidateParams(params); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrInvalidIKM
	}
	if size <= 0 {
		return nil, ErrInvalidKeyLength
	}
	if len(salt) < MinPBKDF2SaltLength {
		return nil, ErrInvalidSalt
	}

	hash, err := hashFor(params.Digest)
	if err != nil {
		return nil, err
	}
	return pbkdf2.Key(secret, salt, params.Rounds, size, hash.New), nil
}

// Algorithm returns the KDF algorithm
func (p *PBKDF2) Algorithm() Algorithm {
	return AlgorithmPBKDF2
}

// ValidateParams validates PBKDF2 parameters
func (p *PBKDF2) ValidateParams(params *Params) error {
	if params == nil || params.Algorithm != AlgorithmPBKDF2 {
		return ErrUnsupportedAlgorithm
	}
	if params.Rounds < MinPBKDF2Iterations {
		return ErrInvalidIterations
	}
	if _, err := hashFor(params.Digest); err != nil {
		return err
	}
	return nil
}
