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
	"golang.org/x/crypto/argon2"
)

const (
	// MinArgon2SaltLength is the minimum recommended salt length in bytes
	MinArgon2SaltLength = 16

	// MinArgon2Memory is the minimum memory cost in KiB
	MinArgon2Memory = 8 * 1024 // 8 MiB

	// MinArgon2Time is the minimum time cost
	MinArgon2Time = 1

	// MinArgon2Threads is the minimum number of lanes
	MinArgon2Threads = 1
)

// Argon2 implements KDF using Argon2i or Argon2id
type Argon2 struct {
	variant Algorithm
}

// NewArgon2 creates an Argon2 KDF for the given variant. Anything other
// than AlgorithmArgon2i selects Argon2id.
func NewArgon2(variant Algorithm) *Argon2 {
	if variant != AlgorithmArgon2i {
		variant = AlgorithmArgon2id
	}
	return &Argon2{variant: variant}
}

// DeriveKey derives a key using Argon2
func (a *Argon2) DeriveKey(secret, salt []byte, size int, params *Params) ([]byte, error) {
	if err := a.ValidateParams(params); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrInvalidIKM
	}
	if size <= 0 {
		return nil, ErrInvalidKeyLength
	}
	if len(salt) < MinArgon2SaltLength {
		return nil, ErrInvalidSalt
	}

	if a.variant == AlgorithmArgon2i {
		return argon2.Key(secret, salt, params.Time, params.Memory, params.Parallelism, uint32(size)), nil
	}
	return argon2.IDKey(secret, salt, params.Time, params.Memory, params.Parallelism, uint32(size)), nil
}

// Algorithm returns the KDF algorithm
func (a *Argon2) Algorithm() Algorithm {
	return a.variant
}

// ValidateParams validates Argon2 parameters
func (a *Argon2) ValidateParams(params *Params) error {
	if params == nil {
		return ErrUnsupportedAlgorithm
	}
	if params.Algorithm != a.variant {
		return ErrUnsupportedAlgorithm
	}
	if params.Memory < MinArgon2Memory {
		return ErrInvalidMemory
	}
	if params.Time < MinArgon2Time {
		return ErrInvalidTime
	}
	if params.Parallelism < MinArgon2Threads {
		return ErrInvalidThreads
	}
	return nil
}
