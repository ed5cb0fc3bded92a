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

// Package storage persists MFKDF policies. A Backend is a flat key/value
// store; PolicyStore layers policy naming and a JSON or CBOR codec over it.
package storage

// Backend is a key/value store. Keys are slash-separated paths such as
// "policies/vault". Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(key string) ([]byte, error)

	// Put stores value under key, replacing any existing value
	Put(key string, value []byte) error

	// Delete removes key, or returns ErrNotFound
	Delete(key string) error

	// List returns the keys beginning with prefix in sorted order
	List(prefix string) ([]string, error)

	// Exists reports whether key is present
	Exists(key string) (bool, error)

	// Close releases the backend. Later calls fail with ErrClosed.
	Close() error
}
