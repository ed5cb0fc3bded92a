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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

// PolicyPrefix namespaces policies within a backend
const PolicyPrefix = "policies/"

// PolicyStore saves and loads named policies. Policies are validated in both
// directions, so a store never hands out a structurally broken policy.
type PolicyStore struct {
	backend Backend
	codec   Codec
}

// NewPolicyStore returns a store over backend. A nil codec selects JSON.
func NewPolicyStore(backend Backend, codec Codec) *PolicyStore {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &PolicyStore{backend: backend, codec: codec}
}

// PolicyKey returns the backend key of the policy called name
func PolicyKey(name string) string {
	return PolicyPrefix + name
}

// Save stores policy under name, replacing any previous version
func (s *PolicyStore) Save(name string, policy *mfkdf.Policy) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := mfkdf.Validate(policy); err != nil {
		return fmt.Errorf("refusing to save policy %q: %w", name, err)
	}
	data, err := s.codec.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to encode policy %q: %w", name, err)
	}
	return s.backend.Put(PolicyKey(name), data)
}

// Load returns the policy stored under name
func (s *PolicyStore) Load(name string) (*mfkdf.Policy, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := s.backend.Get(PolicyKey(name))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: policy %q", ErrNotFound, name)
		}
		return nil, err
	}
	policy, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("policy %q: %w", name, err)
	}
	if err := mfkdf.Validate(policy); err != nil {
		return nil, fmt.Errorf("%w: policy %q: %w", ErrInvalidData, name, err)
	}
	return policy, nil
}

// Delete removes the policy stored under name
func (s *PolicyStore) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := s.backend.Delete(PolicyKey(name)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: policy %q", ErrNotFound, name)
		}
		return err
	}
	return nil
}

// Exists reports whether a policy is stored under name
func (s *PolicyStore) Exists(name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	return s.backend.Exists(PolicyKey(name))
}

// List returns the names of all stored policies in sorted order
func (s *PolicyStore) List() ([]string, error) {
	keys, err := s.backend.List(PolicyPrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if name := strings.TrimPrefix(k, PolicyPrefix); name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// validateName accepts names that map to a single key below PolicyPrefix
func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}
