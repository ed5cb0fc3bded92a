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

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

const (
	// CodecJSON stores policies as JSON with base64 byte strings
	CodecJSON = "json"

	// CodecCBOR stores policies as canonical CBOR with native byte strings
	CodecCBOR = "cbor"
)

// Codec converts policies to and from their stored form
type Codec interface {
	Name() string
	Marshal(policy *mfkdf.Policy) ([]byte, error)
	Unmarshal(data []byte) (*mfkdf.Policy, error)
}

// NewCodec returns the codec called name. An empty name selects JSON.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecCBOR:
		return NewCBORCodec()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// JSONCodec is the interchange format used by other MFKDF implementations
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Marshal(policy *mfkdf.Policy) ([]byte, error) {
	return json.MarshalIndent(policy, "", "  ")
}

func (JSONCodec) Unmarshal(data []byte) (*mfkdf.Policy, error) {
	var policy mfkdf.Policy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return &policy, nil
}

// CBORCodec is a compact binary encoding. Core deterministic encoding makes
// equal policies encode to equal bytes.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec returns a CBOR codec using core deterministic encoding
func NewCBORCodec() (*CBORCodec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 4 * (mfkdf.DefaultMaxDepth + 2),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create cbor decoder: %w", err)
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

func (c *CBORCodec) Name() string { return CodecCBOR }

func (c *CBORCodec) Marshal(policy *mfkdf.Policy) ([]byte, error) {
	return c.enc.Marshal(policy)
}

func (c *CBORCodec) Unmarshal(data []byte) (*mfkdf.Policy, error) {
	var policy mfkdf.Policy
	if err := c.dec.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return &policy, nil
}
