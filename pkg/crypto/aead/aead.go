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

// Package aead seals small factor secrets with XChaCha20-Poly1305.
//
// Sealed values are self-contained: the random 24-byte nonce is prepended to
// the ciphertext and the 16-byte Poly1305 tag is appended. The extended nonce
// makes random nonces safe for the lifetime of a key.
package aead

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrInvalidKey indicates the key is not 32 bytes
	ErrInvalidKey = errors.New("aead: invalid key size")

	// ErrCiphertextTooShort indicates the sealed value cannot hold a nonce and tag
	ErrCiphertextTooShort = errors.New("aead: ciphertext too short")

	// ErrAuthentication indicates the tag did not verify
	ErrAuthentication = errors.New("aead: message authentication failed")
)

// KeySize is the required key length in bytes
const KeySize = chacha20poly1305.KeySize

// Overhead is the number of bytes Seal adds to a plaintext
const Overhead = chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// Cipher seals and opens values under a single key
type Cipher struct {
	aead cipher.AEAD
}

// New returns a Cipher for the 32-byte key
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes (must be %d bytes)", ErrInvalidKey, len(key), KeySize)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create XChaCha20-Poly1305 cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts and authenticates plaintext, binding additionalData
func (c *Cipher) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open verifies and decrypts a value produced by Seal
func (c *Cipher) Open(sealed, additionalData []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextTooShort, len(sealed))
	}
	plaintext, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], additionalData)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// Seal is a convenience wrapper around New and Cipher.Seal
func Seal(key, plaintext, additionalData []byte) ([]byte, error) {
	c, err := New(key)
	if err != nil {
		return nil, err
	}
	return c.Seal(plaintext, additionalData)
}

// Open is a convenience wrapper around New and Cipher.Open
func Open(key, sealed, additionalData []byte) ([]byte, error) {
	c, err := New(key)
	if err != nil {
		return nil, err
	}
	return c.Open(sealed, additionalData)
}
