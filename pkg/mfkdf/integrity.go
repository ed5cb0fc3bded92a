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
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
)

// integrityKey derives the HMAC key for the policy tag from the output key
func integrityKey(key []byte) ([]byte, error) {
	return kdf.Expand(key, nil, purposeIntegrity, sha256.Size)
}

// integrityTag computes the policy tag. The MAC input is the policy id, the
// threshold in decimal, the salt, then one SHA-256 digest per factor over its
// id, type, pad, salt, secret (when present) and canonical params.
func integrityTag(policy *Policy, key []byte) ([]byte, error) {
	ikey, err := integrityKey(key)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, ikey)
	mac.Write([]byte(policy.ID))
	mac.Write([]byte(strconv.Itoa(policy.Threshold)))
	mac.Write(policy.Salt)
	for _, f := range policy.Factors {
		digest, err := factorDigest(f)
		if err != nil {
			return nil, err
		}
		mac.Write(digest)
	}
	return mac.Sum(nil), nil
}

func factorDigest(f *Factor) ([]byte, error) {
	params, err := canonicalParams(f)
	if err != nil {
		return nil, fmt.Errorf("%w: factor %q params: %w", ErrValidation, f.ID, err)
	}
	h := sha256.New()
	h.Write([]byte(f.ID))
	h.Write([]byte(f.Type))
	h.Write(f.Pad)
	h.Write(f.Salt)
	if len(f.Secret) > 0 {
		h.Write(f.Secret)
	}
	h.Write(params)
	return h.Sum(nil), nil
}

// canonicalParams returns the params of f as JSON with sorted object keys
// and no insignificant whitespace. A stack contributes its nested policy.
func canonicalParams(f *Factor) ([]byte, error) {
	raw := []byte(f.Params)
	if f.Policy != nil {
		nested, err := json.Marshal(f.Policy)
		if err != nil {
			return nil, err
		}
		raw = nested
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("{}"), nil
	}
	return canonicalJSON(raw)
}

// canonicalJSON re-encodes a JSON document. encoding/json writes map keys
// in sorted order, and json.Number keeps numbers exactly as stored.
func canonicalJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// verifyIntegrity checks the stored tag of policy against key
func verifyIntegrity(policy *Policy, key []byte) error {
	if len(policy.HMAC) == 0 {
		return fmt.Errorf("%w: policy %q carries no integrity tag", ErrIntegrity, policy.ID)
	}
	expected, err := integrityTag(policy, key)
	if err != nil {
		return err
	}
	if !hmac.Equal(expected, policy.HMAC) {
		return fmt.Errorf("%w: tag mismatch for policy %q", ErrIntegrity, policy.ID)
	}
	return nil
}

// sign stores a fresh tag on policy
func sign(policy *Policy, key []byte) error {
	tag, err := integrityTag(policy, key)
	if err != nil {
		return err
	}
	policy.HMAC = tag
	return nil
}
