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

package kdf_test

import (
	"fmt"
	"log"

	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
)

// ExampleDerive stretches a root secret with Argon2id.
func ExampleDerive() {
	params := &kdf.Params{
		Algorithm:   kdf.AlgorithmArgon2id,
		Time:        1,
		Memory:      kdf.MinArgon2Memory,
		Parallelism: 1,
	}

	key, err := kdf.Derive([]byte("root secret"), []byte("0123456789abcdef"), 32, params)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Derived %d-byte key\n", len(key))

	// Output:
	// Derived 32-byte key
}

// ExampleExpand derives two domain separated values from one key.
func ExampleExpand() {
	ikm := []byte("output key material")

	integrity, _ := kdf.Expand(ikm, nil, "mfkdf2:integrity", 32)
	subkey, _ := kdf.Expand(ikm, nil, "mfkdf2:subkey:encryption", 32)

	fmt.Println(string(integrity) != string(subkey))

	// Output:
	// true
}
