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
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-mfkdf/internal/memlock"
	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/logger"
	"github.com/jeremyhahn/go-mfkdf/pkg/metrics"
)

// DerivedKey is the in-memory result of Setup or Derive. It holds the
// output key, the root secret and a complete share vector, which together
// allow the factor set to be changed without changing the key. Only Policy
// is ever persisted.
//
// Reads and reconstitution are serialized by an internal mutex, so a
// DerivedKey may be shared between goroutines.
type DerivedKey struct {
	mu      sync.Mutex
	policy  *Policy
	key     []byte
	secret  *memlock.Buffer
	shares  [][]byte
	outputs map[string]map[string]any
	cfg     *config
}

func newDerivedKey(policy *Policy, key []byte, secret *memlock.Buffer, shares [][]byte, outputs map[string]map[string]any, cfg *config) *DerivedKey {
	return &DerivedKey{
		policy:  policy,
		key:     key,
		secret:  secret,
		shares:  shares,
		outputs: outputs,
		cfg:     cfg,
	}
}

// Policy returns a copy of the current policy for persistence
func (dk *DerivedKey) Policy() *Policy {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	return dk.policy.Clone()
}

// Key returns a copy of the output key
func (dk *DerivedKey) Key() []byte {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	return cloneBytes(dk.key)
}

// Outputs returns a copy of the public outputs of the factors set up or
// derived through this key, keyed by factor id
func (dk *DerivedKey) Outputs() map[string]map[string]any {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	out := make(map[string]map[string]any, len(dk.outputs))
	for id, o := range dk.outputs {
		out[id] = maps.Clone(o)
	}
	return out
}

// Subkey derives a size-byte key for purpose from the output key. Distinct
// purposes give independent keys.
func (dk *DerivedKey) Subkey(purpose string, size int) ([]byte, error) {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	if err := dk.alive(); err != nil {
		return nil, err
	}
	return kdf.Expand(dk.key, nil, purpose, size)
}

// Persist returns the share of factor id. Supplying it later through a
// persisted factor stands in for the factor itself, which is useful for
// caching a factor that is inconvenient to present on every derive.
func (dk *DerivedKey) Persist(id string) ([]byte, error) {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	if err := dk.alive(); err != nil {
		return nil, err
	}
	_, i := dk.policy.Factor(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFactor, id)
	}
	return cloneBytes(dk.shares[i]), nil
}

// Hint returns the first bits of a value derived from factor id's stretched
// material, as a string of '0' and '1'. A stored hint lets Derive reject a
// wrong factor early at the cost of leaking bits bits about it.
func (dk *DerivedKey) Hint(id string, bits int) (string, error) {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	return dk.hint(id, bits)
}

func (dk *DerivedKey) hint(id string, bits int) (string, error) {
	if err := dk.alive(); err != nil {
		return "", err
	}
	desc, i := dk.policy.Factor(id)
	if i < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownFactor, id)
	}
	material, err := xorPad(desc.Pad, dk.shares[i])
	if err != nil {
		return "", err
	}
	return computeHint(material, desc.Salt, id, bits)
}

// AddHint stores a hint of bits bits for factor id in the policy. Zero
// selects DefaultHintBits.
func (dk *DerivedKey) AddHint(id string, bits int) error {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	start := time.Now()
	err := dk.addHint(id, bits)
	dk.cfg.record(metrics.OpAddHint, start, 1, err)
	return err
}

func (dk *DerivedKey) addHint(id string, bits int) error {
	if bits == 0 {
		bits = DefaultHintBits
	}
	hint, err := dk.hint(id, bits)
	if err != nil {
		return err
	}
	next := dk.policy.Clone()
	desc, _ := next.Factor(id)
	desc.Hint = hint
	if len(next.HMAC) > 0 {
		if err := sign(next, dk.key); err != nil {
			return err
		}
	}
	dk.policy = next
	dk.cfg.logger.Info("hint added", logger.String("policy", next.ID), logger.String("factor", id), logger.Int("bits", bits))
	return nil
}

// Destroy wipes the key, root secret and shares
func (dk *DerivedKey) Destroy() {
	dk.mu.Lock()
	defer dk.mu.Unlock()
	dk.secret.Destroy()
	memlock.Wipe(dk.key)
	for _, s := range dk.shares {
		memlock.Wipe(s)
	}
	dk.key = nil
	dk.shares = nil
}

func computeHint(material, salt []byte, id string, bits int) (string, error) {
	if bits < 1 || bits > 256 {
		return "", fmt.Errorf("%w: hint must be between 1 and 256 bits, got %d", ErrRange, bits)
	}
	h, err := kdf.Expand(material, salt, purposeHint+id, 32)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(bits)
	for i := 0; i < bits; i++ {
		b.WriteByte('0' + (h[i/8]>>(7-i%8))&1)
	}
	return b.String(), nil
}

func (dk *DerivedKey) alive() error {
	if dk.key == nil {
		return fmt.Errorf("%w: key has been destroyed", ErrValidation)
	}
	return nil
}
