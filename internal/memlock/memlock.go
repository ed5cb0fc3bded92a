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

// Package memlock pins secret buffers in RAM so they are not written to
// swap, and wipes them on release. Locking is best effort: hosts with a low
// RLIMIT_MEMLOCK refuse the call and the buffer stays usable unlocked.
package memlock

import "errors"

var errUnsupported = errors.New("memlock: not supported on this platform")

// Buffer is a byte slice that may be pinned in memory
type Buffer struct {
	data   []byte
	locked bool
}

// New allocates a zeroed buffer of size bytes and attempts to lock it
func New(size int) *Buffer {
	b := &Buffer{data: make([]byte, size)}
	if size > 0 && lockMemory(b.data) == nil {
		b.locked = true
	}
	return b
}

// From copies src into a new locked buffer
func From(src []byte) *Buffer {
	b := New(len(src))
	copy(b.data, src)
	return b
}

// Bytes returns the underlying slice. It is valid until Destroy.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Locked reports whether the operating system accepted the lock
func (b *Buffer) Locked() bool {
	return b != nil && b.locked
}

// Destroy zeroes and unlocks the buffer
func (b *Buffer) Destroy() {
	if b == nil || b.data == nil {
		return
	}
	Wipe(b.data)
	if b.locked {
		_ = unlockMemory(b.data)
		b.locked = false
	}
	b.data = nil
}

// Wipe overwrites b with zeros
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
