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

// Package kdf provides the key derivation functions used by go-mfkdf.
//
// A policy stretches its combined root secret through one of the memory or
// iteration hard functions in this package (Argon2id by default) to obtain
// the output key. HKDF-SHA256 is used everywhere a fixed-length, domain
// separated value is expanded from key material that already has full
// entropy: factor stretching, per-factor keys, integrity keys, hints and
// subkeys.
package kdf

import (
	"crypto"
	_ "crypto/sha256" // Link in SHA256
	_ "crypto/sha512" // Link in SHA512
	"errors"
	"fmt"
)

// Algorithm identifies a key derivation function
type Algorithm string

const (
	// AlgorithmHKDF is HKDF-Extract-and-Expand (RFC 5869). It performs no
	// stretching and suits high-entropy factors only.
	AlgorithmHKDF Algorithm = "hkdf"

	// AlgorithmPBKDF2 is Password-Based Key Derivation Function 2 (RFC 8018)
	AlgorithmPBKDF2 Algorithm = "pbkdf2"

	// AlgorithmScrypt is scrypt (RFC 7914)
	AlgorithmScrypt Algorithm = "scrypt"

	// AlgorithmArgon2i is the data-independent Argon2 variant
	AlgorithmArgon2i Algorithm = "argon2i"

	// AlgorithmArgon2id is the hybrid Argon2 variant (RFC 9106), the default
	AlgorithmArgon2id Algorithm = "argon2id"
)

// String returns the string representation of the KDF algorithm
func (a Algorithm) String() string {
	return string(a)
}

// Params holds the persisted, public settings of a key derivation
// function. Only the fields relevant to Algorithm are set.
type Params struct {
	// Algorithm selects the function
	Algorithm Algorithm `json:"type" yaml:"type"`

	// Digest is the hash for HKDF and PBKDF2 (sha256 or sha512)
	Digest string `json:"digest,omitempty" yaml:"digest,omitempty"`

	// Rounds is the PBKDF2 iteration count
	Rounds int `json:"rounds,omitempty" yaml:"rounds,omitempty"`

	// Time is the Argon2 time cost
	Time uint32 `json:"time,omitempty" yaml:"time,omitempty"`

	// Memory is the Argon2 memory cost in KiB
	Memory uint32 `json:"memory,omitempty" yaml:"memory,omitempty"`

	// Parallelism is the Argon2 lane count or the scrypt p parameter
	Parallelism uint8 `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`

	// Cost is the scrypt CPU/memory cost N (a power of two)
	Cost int `json:"cost,omitempty" yaml:"cost,omitempty"`

	// BlockSize is the scrypt block size r
	BlockSize int `json:"blocksize,omitempty" yaml:"blocksize,omitempty"`
}

// KDF stretches a secret into a key. Implementations are deterministic:
// identical inputs always produce identical output.
type KDF interface {
	// DeriveKey derives size bytes from secret and salt
	DeriveKey(secret, salt []byte, size int, params *Params) ([]byte, error)

	// Algorithm returns the algorithm this function implements
	Algorithm() Algorithm

	// ValidateParams reports whether params are acceptable for this function
	ValidateParams(params *Params) error
}

// Common errors
var (
	// ErrInvalidSalt indicates the salt is invalid (nil, empty, or too short)
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested key length is invalid
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidIterations indicates the iteration count is invalid
	ErrInvalidIterations = errors.New("kdf: invalid iterations")

	// ErrInvalidMemory indicates the memory cost is invalid
	ErrInvalidMemory = errors.New("kdf: invalid memory cost")

	// ErrInvalidThreads indicates the parallelism is invalid
	ErrInvalidThreads = errors.New("kdf: invalid parallelism")

	// ErrInvalidTime indicates the time cost is invalid
	ErrInvalidTime = errors.New("kdf: invalid time cost")

	// ErrInvalidCost indicates the scrypt cost or block size is invalid
	ErrInvalidCost = errors.New("kdf: invalid scrypt cost")

	// ErrInvalidHash indicates the digest is invalid or not supported
	ErrInvalidHash = errors.New("kdf: invalid or unsupported digest")

	// ErrInvalidIKM indicates the input key material is invalid
	ErrInvalidIKM = errors.New("kdf: invalid input key material")

	// ErrUnsupportedAlgorithm indicates the algorithm is not supported
	ErrUnsupportedAlgorithm = errors.New("kdf: unsupported algorithm")
)

// DefaultParams returns recommended default parameters for each algorithm
func DefaultParams(algorithm Algorithm) *Params {
	switch algorithm {
	case AlgorithmHKDF:
		return &Params{
			Algorithm: AlgorithmHKDF,
			Digest:    "sha256",
		}
	case AlgorithmPBKDF2:
		return &Params{
			Algorithm: AlgorithmPBKDF2,
			Digest:    "sha256",
			Rounds:    600000, // OWASP recommendation for PBKDF2-SHA256 (2023)
		}
	case AlgorithmScrypt:
		return &Params{
			Algorithm:   AlgorithmScrypt,
			Cost:        1 << 15,
			BlockSize:   8,
			Parallelism: 1,
		}
	case AlgorithmArgon2i, AlgorithmArgon2id:
		return &Params{
			Algorithm:   algorithm,
			Time:        2,
			Memory:      24 * 1024, // 24 MiB
			Parallelism: 1,
		}
	default:
		return nil
	}
}

// New returns the KDF implementing algorithm
func New(algorithm Algorithm) (KDF, error) {
	switch algorithm {
	case AlgorithmHKDF:
		return NewHKDF(), nil
	case AlgorithmPBKDF2:
		return NewPBKDF2(), nil
	case AlgorithmScrypt:
		return NewScrypt(), nil
	case AlgorithmArgon2i, AlgorithmArgon2id:
		return NewArgon2(algorithm), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// Derive runs the KDF selected by params.Algorithm
func Derive(secret, salt []byte, size int, params *Params) ([]byte, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params cannot be nil", ErrUnsupportedAlgorithm)
	}
	k, err := New(params.Algorithm)
	if err != nil {
		return nil, err
	}
	return k.DeriveKey(secret, salt, size, params)
}

// Validate checks params against the algorithm they name
func Validate(params *Params) error {
	if params == nil {
		return fmt.Errorf("%w: params cannot be nil", ErrUnsupportedAlgorithm)
	}
	k, err := New(params.Algorithm)
	if err != nil {
		return err
	}
	return k.ValidateParams(params)
}

// hashFor maps a digest name to its hash function
func hashFor(digest string) (crypto.Hash, error) {
	switch digest {
	case "", "sha256":
		return crypto.SHA256, nil
	case "sha512":
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidHash, digest)
	}
}
