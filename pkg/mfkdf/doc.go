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

// Package mfkdf derives a stable cryptographic key from a changeable set of
// authentication factors.
//
// # Overview
//
// Setup generates a random root secret and splits it into one share per
// factor with a K-of-N threshold scheme (package secretsharing). Each share
// is stored in the policy as a pad: the share XOR the factor's material
// stretched with HKDF. The output key is the KDF of the root secret, so it
// does not depend on which factors were used to recover it.
//
// Derive unmasks the shares of the supplied factors, combines them, re-runs
// the KDF and, when enabled, checks the policy's HMAC. A wrong factor is
// never detected directly: it yields a share that looks random and the
// combined secret, and therefore the key, is wrong. Derive then reshares the
// secret so the returned DerivedKey holds a share for every factor.
//
// # Policies
//
// A stack factor nests a complete policy whose derived key becomes the
// factor's material in its parent. With thresholds of 1 (OR), N (AND) or M
// (M-of-N) at each level, stacks express any monotone boolean combination
// of factors:
//
//	pw, _ := factors.Password("correct horse", factors.PasswordOptions{})
//	otp, _ := factors.HOTP(factors.HOTPOptions{ID: "hotp"})
//	rec, _ := factors.UUID(factors.UUIDOptions{ID: "recovery"})
//	either, _ := mfkdf.Or(ctx, otp, rec)
//	root, _ := mfkdf.And(ctx, pw, either)
//	key, _ := mfkdf.PolicySetup(ctx, root)
//
// PolicyDerive accepts a flat map of leaf inputs and routes them to the
// right level of the tree.
//
// # Reconstitution
//
// SetThreshold, AddFactors, RemoveFactors, RecoverFactors and the general
// Reconstitute re-split the unchanged root secret over a new factor set.
// The key never changes. Changes are all-or-nothing.
//
// # Persistence
//
// Policy is the only persisted value. It serializes to JSON with byte
// strings in standard base64; package storage also offers CBOR. Persist the
// policy returned by DerivedKey.Policy after every Derive and every
// reconstitution, because OTP factors advance their params and pads change.
package mfkdf
