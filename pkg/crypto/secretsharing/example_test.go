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

package secretsharing_test

import (
	"bytes"
	"fmt"
	"log"

	"github.com/jeremyhahn/go-mfkdf/pkg/crypto/secretsharing"
)

// ExampleSplit demonstrates a 2-of-3 split recovered from two shares.
func ExampleSplit() {
	secret := []byte("my secret key")
	shares, err := secretsharing.Split(secret, 2, 3)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Secret split into %d shares\n", len(shares))

	// The second factor is unavailable
	shares[1] = nil

	recovered, err := secretsharing.Combine(shares, 2, 3)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Secret reconstructed successfully: %v\n", bytes.Equal(recovered, secret))

	// Output:
	// Secret split into 3 shares
	// Secret reconstructed successfully: true
}

// ExampleReshare demonstrates regenerating a lost share from the others.
func ExampleReshare() {
	shamir, err := secretsharing.NewShamir(&secretsharing.ShareConfig{
		Threshold:   3,
		TotalShares: 5,
	})
	if err != nil {
		log.Fatal(err)
	}

	shares, _ := shamir.Split([]byte("root secret"))
	lost := shares[4]

	partial := [][]byte{shares[0], nil, shares[2], shares[3], nil}
	full, err := shamir.Reshare(partial)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Lost share regenerated: %v\n", bytes.Equal(full[4], lost))

	// Output:
	// Lost share regenerated: true
}

// ExampleReshare_conjunction shows that n-of-n shares cannot be regenerated.
func ExampleReshare_conjunction() {
	shares, _ := secretsharing.Split([]byte("all or nothing"), 3, 3)
	shares[2] = nil

	_, err := secretsharing.Reshare(shares, 3, 3)
	fmt.Println(err != nil)

	// Output:
	// true
}
