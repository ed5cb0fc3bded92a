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

package storage

import "errors"

var (
	// ErrClosed is returned when using a closed backend
	ErrClosed = errors.New("storage: closed")

	// ErrNotFound is returned when a key or policy does not exist
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidName is returned for empty policy names or names that would
	// escape the policy namespace
	ErrInvalidName = errors.New("storage: invalid name")

	// ErrInvalidData is returned when a stored policy cannot be decoded or
	// fails validation
	ErrInvalidData = errors.New("storage: invalid data")

	// ErrUnknownCodec is returned for a codec name other than json or cbor
	ErrUnknownCodec = errors.New("storage: unknown codec")
)
