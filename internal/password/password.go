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

// Package password holds knowledge-factor input (passwords and security
// question answers) in a buffer that can be wiped once the factor material
// has been stretched.
package password

import (
	"crypto/subtle"
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrEmptyPassword is returned when an empty password is provided.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordZeroed is returned when the password has been zeroed.
	ErrPasswordZeroed = errors.New("password has been zeroed")
)

// Secret is a knowledge factor that can be read as bytes and wiped
type Secret interface {
	Bytes() []byte
	String() (string, error)
	Clear()
	Len() int
}

// ClearPassword keeps a password in memory until Clear is called
type ClearPassword struct {
	password []byte
}

// NewClearPassword copies password into a new ClearPassword
func NewClearPassword(password []byte) (*ClearPassword, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	p := make([]byte, len(password))
	copy(p, password)
	return &ClearPassword{password: p}, nil
}

// NewClearPasswordFromString wraps a string password
func NewClearPasswordFromString(password string) (*ClearPassword, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	return &ClearPassword{password: []byte(password)}, nil
}

// NewAnswer normalizes a security question answer and wraps it
func NewAnswer(answer string) (*ClearPassword, error) {
	return NewClearPasswordFromString(Normalize(answer))
}

func (p *ClearPassword) String() (string, error) {
	if p.password == nil {
		return "", ErrPasswordZeroed
	}
	return string(p.password), nil
}

// Bytes returns a copy of the password, nil once cleared
func (p *ClearPassword) Bytes() []byte {
	if p.password == nil {
		return nil
	}
	result := make([]byte, len(p.password))
	copy(result, p.password)
	return result
}

// Len returns the password length in bytes
func (p *ClearPassword) Len() int {
	return len(p.password)
}

// Clear zeroes the password
func (p *ClearPassword) Clear() {
	if p.password != nil {
		for i := range p.password {
			p.password[i] = 0
		}
		subtle.ConstantTimeCopy(1, p.password, make([]byte, len(p.password)))
		p.password = nil
	}
}

// Normalize canonicalizes a free-text answer so trivial differences in case,
// punctuation and spacing produce the same factor material. Letters are
// lowercased, everything that is not a letter, digit or space is dropped and
// runs of whitespace collapse to a single space.
func Normalize(answer string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(answer) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

var _ Secret = (*ClearPassword)(nil)
