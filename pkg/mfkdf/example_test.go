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

package mfkdf_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"log"

	"github.com/jeremyhahn/go-mfkdf/pkg/factors"
	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

// hotpCode plays the authenticator app
func hotpCode(secret []byte, counter uint64) int {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)
	mac := hmac.New(sha1.New, secret)
	mac.Write(buf[:])
	sum := mac.Sum(nil)
	offset := sum[len(sum)-1] & 0x0F
	return int(binary.BigEndian.Uint32(sum[offset:offset+4])&0x7FFFFFFF) % 1000000
}

// ExampleSetup demonstrates a 2-of-3 key over a password, an HOTP
// authenticator and a recovery code.
func ExampleSetup() {
	ctx := context.Background()
	otpSecret := []byte("hello world")

	pw, _ := factors.Password("password", factors.PasswordOptions{})
	otp, _ := factors.HOTP(factors.HOTPOptions{Secret: otpSecret})
	recovery, _ := factors.UUID(factors.UUIDOptions{
		ID:   "recovery",
		UUID: "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
	})

	key, err := mfkdf.Setup(ctx, []*mfkdf.SetupFactor{pw, otp, recovery},
		mfkdf.WithThreshold(2),
		mfkdf.WithSize(16),
		mfkdf.WithKDF(*kdf.DefaultParams(kdf.AlgorithmHKDF)))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Key size: %d bytes\n", len(key.Key()))

	// Later: the user types their password and the code their
	// authenticator shows for counter 1
	derived, err := mfkdf.Derive(ctx, key.Policy(), map[string]mfkdf.DeriveFactor{
		"password": factors.DerivePassword("password"),
		"hotp":     factors.DeriveHOTP(hotpCode(otpSecret, 1)),
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Same key: %v\n", bytes.Equal(key.Key(), derived.Key()))

	_, err = mfkdf.Derive(ctx, key.Policy(), map[string]mfkdf.DeriveFactor{
		"password": factors.DerivePassword("password"),
	})
	fmt.Printf("Password alone: %v\n", errors.Is(err, mfkdf.ErrInsufficientFactors))

	// Output:
	// Key size: 16 bytes
	// Same key: true
	// Password alone: true
}

// ExamplePolicySetup demonstrates a password combined with either of two
// recovery codes.
func ExamplePolicySetup() {
	ctx := context.Background()

	pw, _ := factors.Password("password", factors.PasswordOptions{})
	first, _ := factors.UUID(factors.UUIDOptions{ID: "first", UUID: "6ec0bd7f-11c0-43da-975e-2a8ad9ebae0b"})
	second, _ := factors.UUID(factors.UUIDOptions{ID: "second", UUID: "1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"})

	either, _ := mfkdf.Or(ctx, first, second)
	root, _ := mfkdf.And(ctx, pw, either)
	key, err := mfkdf.PolicySetup(ctx, root, mfkdf.WithKDF(*kdf.DefaultParams(kdf.AlgorithmHKDF)))
	if err != nil {
		log.Fatal(err)
	}

	policy := key.Policy()
	fmt.Println(mfkdf.IDs(policy))
	fmt.Println(mfkdf.Evaluate(policy, []string{"password", "second"}))
	fmt.Println(mfkdf.Evaluate(policy, []string{"first", "second"}))

	derived, err := mfkdf.PolicyDerive(ctx, policy, map[string]mfkdf.DeriveFactor{
		"password": factors.DerivePassword("password"),
		"second":   factors.DeriveUUID("1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"),
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(bytes.Equal(key.Key(), derived.Key()))

	// Output:
	// [password first second]
	// true
	// false
	// true
}

// ExampleDerivedKey_SetThreshold demonstrates tightening a policy without
// changing the key.
func ExampleDerivedKey_SetThreshold() {
	ctx := context.Background()

	a, _ := factors.Password("alpha", factors.PasswordOptions{ID: "a"})
	b, _ := factors.Password("bravo", factors.PasswordOptions{ID: "b"})
	key, err := mfkdf.Setup(ctx, []*mfkdf.SetupFactor{a, b},
		mfkdf.WithThreshold(1),
		mfkdf.WithKDF(*kdf.DefaultParams(kdf.AlgorithmHKDF)))
	if err != nil {
		log.Fatal(err)
	}
	before := key.Key()

	if err := key.SetThreshold(ctx, 2); err != nil {
		log.Fatal(err)
	}
	fmt.Println(key.Policy().Threshold, bytes.Equal(before, key.Key()))

	// Output:
	// 2 true
}
