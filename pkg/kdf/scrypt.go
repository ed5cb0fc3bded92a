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
	"golang.org/x/crypto/scrypt"
)

const (
	// MinScryptCost is the smallest accepted scrypt N
	MinScryptCost = 1 << 10

	// MinScryptSaltLength is the minimum recommended salt length in bytes
	MinScryptSaltLength = 16
)

// Scrypt implements KDF using scrypt (RFC 7914)
type Scrypt struct{}

// NewScrypt creates a new scrypt KDF
func NewScrypt() *Scrypt {
	return &Scrypt{}
}

// DeriveKey derives a key using scrypt
func (s *Scrypt) DeriveKey(secret, salt []byte, size int, params *Params) ([]byte, error) {
	if err := s.ValidateParams(params); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrInvalidIKM
	}
	if size <= 0 {
		return nil, ErrInvalidKeyLength
	}
	if len(salt) < MinScryptSaltLength {
		return nil, ErrInvalidSalt
	}
	return scrypt.Key(secret, salt, params.Cost, params.BlockSize, int(params.Parallelism), size)
}

// Algorithm returns the KDF algorithm
func (s *Scrypt) Algorithm() Algorithm {
	return AlgorithmScrypt
}

// ValidateParams validates scrypt parameters
func (s *Scrypt) ValidateParams(params *Params) error {
	if params == nil || params.Algorithm != AlgorithmScrypt {
		return ErrUnsupportedAlgorithm
	}
	if params.Cost < MinScryptCost || params.Cost&(params.Cost-1) != 0 {
		return ErrInvalidCost
	}
	if params.BlockSize < 1 {
		return ErrInvalidCost
	}
	if params.Parallelism < 1 {
		return ErrInvalidThreads
	}
	if uint64(params.BlockSize)*uint64(params.Parallelism) >= 1<<30 {
		return ErrInvalidCost
	}
	return nil
}
