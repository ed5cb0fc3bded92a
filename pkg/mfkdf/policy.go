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

package mfkdf

import (
	"encoding/json"
	"fmt"

	"github.com/jeremyhahn/go-mfkdf/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
)

const (
	// TypeStack is the factor type of a nested policy
	TypeStack = "stack"

	// TypePersisted is the derive-side type of a factor whose input is the
	// raw share saved with DerivedKey.Persist
	TypePersisted = "persisted"

	// DefaultMaxDepth bounds stack nesting in persisted policies
	DefaultMaxDepth = 16
)

// Policy is the persisted, public description of a derived key. It holds
// everything needed to re-derive the key from a sufficient set of factors
// and nothing that reveals the key or any factor on its own.
type Policy struct {
	// Schema optionally names the document schema
	Schema string `json:"$schema,omitempty"`

	// ID identifies the policy and is bound by the integrity tag
	ID string `json:"$id"`

	// Threshold is the number of factors required to derive the key
	Threshold int `json:"threshold"`

	// Salt is the salt of the output KDF
	Salt []byte `json:"salt"`

	// Size is the root secret, share, pad and key length in bytes
	Size int `json:"size"`

	// KDF holds the output KDF parameters
	KDF kdf.Params `json:"kdf"`

	// Factors lists the factor slots in share order
	Factors []*Factor `json:"factors"`

	// HMAC is the integrity tag, empty when integrity is disabled
	HMAC []byte `json:"hmac,omitempty"`
}

// Factor is the persisted descriptor of one factor slot. A stack factor
// carries its nested policy in Policy; every other type carries opaque
// type-specific parameters in Params. In JSON both forms are written to the
// "params" member.
type Factor struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Pad    []byte          `json:"pad"`
	Salt   []byte          `json:"salt"`
	Secret []byte          `json:"secret,omitempty"`
	Hint   string          `json:"hint,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Policy *Policy         `json:"-" cbor:"policy,omitempty"`
}

// IsStack reports whether f is a nested policy
func (f *Factor) IsStack() bool {
	return f.Policy != nil
}

type factorJSON Factor

// MarshalJSON writes a stack's nested policy into the params member
func (f Factor) MarshalJSON() ([]byte, error) {
	out := factorJSON(f)
	if f.Policy != nil {
		nested, err := json.Marshal(f.Policy)
		if err != nil {
			return nil, err
		}
		out.Params = nested
	}
	if out.Params == nil {
		out.Params = json.RawMessage("{}")
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the params member of a stack factor as a nested policy
func (f *Factor) UnmarshalJSON(data []byte) error {
	var raw factorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Factor(raw)
	if f.Type != TypeStack {
		return nil
	}
	if len(f.Params) == 0 {
		return fmt.Errorf("%w: stack factor %q has no nested policy", ErrValidation, f.ID)
	}
	var nested Policy
	if err := json.Unmarshal(f.Params, &nested); err != nil {
		return fmt.Errorf("%w: stack factor %q: %w", ErrValidation, f.ID, err)
	}
	f.Policy = &nested
	f.Params = nil
	return nil
}

// Clone returns a deep copy of the policy
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	c := *p
	c.Salt = cloneBytes(p.Salt)
	c.HMAC = cloneBytes(p.HMAC)
	c.Factors = make([]*Factor, len(p.Factors))
	for i, f := range p.Factors {
		c.Factors[i] = f.Clone()
	}
	return &c
}

// Clone returns a deep copy of the factor descriptor
func (f *Factor) Clone() *Factor {
	if f == nil {
		return nil
	}
	c := *f
	c.Pad = cloneBytes(f.Pad)
	c.Salt = cloneBytes(f.Salt)
	c.Secret = cloneBytes(f.Secret)
	if f.Params != nil {
		c.Params = json.RawMessage(cloneBytes(f.Params))
	}
	c.Policy = f.Policy.Clone()
	return &c
}

// Factor returns the top-level descriptor with the given id
func (p *Policy) Factor(id string) (*Factor, int) {
	for i, f := range p.Factors {
		if f.ID == id {
			return f, i
		}
	}
	return nil, -1
}

// Evaluate reports whether the factors named by ids satisfy the policy. A
// leaf counts once when its id is present; a stack counts once when its
// nested policy evaluates true. Stacks nested deeper than DefaultMaxDepth
// never evaluate true, matching what Validate accepts.
func Evaluate(policy *Policy, ids []string) bool {
	have := make(map[string]bool, len(ids))
	for _, id := range ids {
		have[id] = true
	}
	return evaluate(policy, have, 0, DefaultMaxDepth)
}

func evaluate(policy *Policy, have map[string]bool, depth, maxDepth int) bool {
	if policy == nil || depth > maxDepth {
		return false
	}
	count := 0
	for _, f := range policy.Factors {
		if f.IsStack() {
			if evaluate(f.Policy, have, depth+1, maxDepth) {
				count++
			}
		} else if have[f.ID] {
			count++
		}
	}
	return count >= policy.Threshold
}

// IDs returns every leaf factor id in the policy tree, depth first. Levels
// beyond DefaultMaxDepth are not visited.
func IDs(policy *Policy) []string {
	var ids []string
	collectIDs(policy, 0, DefaultMaxDepth, &ids)
	return ids
}

func collectIDs(policy *Policy, depth, maxDepth int, ids *[]string) {
	if policy == nil || depth > maxDepth {
		return
	}
	for _, f := range policy.Factors {
		if f.IsStack() {
			collectIDs(f.Policy, depth+1, maxDepth, ids)
		} else {
			*ids = append(*ids, f.ID)
		}
	}
}

// Validate checks the structural invariants of a policy tree: thresholds in
// range, pad sizes consistent, stacks well formed, nesting bounded and every
// id unique across the whole tree. Nesting is bounded by DefaultMaxDepth;
// Setup, Derive and the policy helpers apply WithMaxDepth instead.
func Validate(policy *Policy) error {
	return validate(policy, DefaultMaxDepth)
}

func validate(policy *Policy, maxDepth int) error {
	return validateLevel(policy, 0, maxDepth, make(map[string]bool))
}

func validateLevel(policy *Policy, depth, maxDepth int, seen map[string]bool) error {
	if policy == nil {
		return fmt.Errorf("%w: policy cannot be nil", ErrValidation)
	}
	if depth > maxDepth {
		return fmt.Errorf("%w: exceeds %d levels", ErrMaxDepth, maxDepth)
	}
	n := len(policy.Factors)
	if n < 1 || n > secretsharing.MaxShares {
		return fmt.Errorf("%w: policy must have between 1 and %d factors, got %d", ErrRange, secretsharing.MaxShares, n)
	}
	if policy.Threshold < 1 || policy.Threshold > n {
		return fmt.Errorf("%w: threshold %d must be between 1 and %d", ErrRange, policy.Threshold, n)
	}
	if policy.Size < 1 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrRange, policy.Size)
	}
	for _, f := range policy.Factors {
		if f == nil {
			return fmt.Errorf("%w: nil factor descriptor", ErrValidation)
		}
		if f.ID == "" {
			return fmt.Errorf("%w: factor id cannot be empty", ErrValidation)
		}
		if f.Type == "" {
			return fmt.Errorf("%w: factor %q has no type", ErrValidation, f.ID)
		}
		if seen[f.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, f.ID)
		}
		seen[f.ID] = true
		if len(f.Pad) != policy.Size {
			return fmt.Errorf("%w: factor %q pad is %d bytes, policy size is %d", ErrRange, f.ID, len(f.Pad), policy.Size)
		}
		if (f.Type == TypeStack) != f.IsStack() {
			return fmt.Errorf("%w: factor %q of type %q is malformed", ErrValidation, f.ID, f.Type)
		}
		if f.IsStack() {
			if err := validateLevel(f.Policy, depth+1, maxDepth, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
