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

// Package factors provides the standard factor types for package mfkdf.
//
// Every type comes as a pair: a setup constructor returning an
// *mfkdf.SetupFactor and a derive constructor returning an
// mfkdf.DeriveFactor. The derive side reproduces the exact material the
// setup side produced when given the correct credential, and quietly
// produces different material otherwise.
//
//	Type       Material                      Public params
//	password   UTF-8 password                none
//	question   normalized answer             question text
//	uuid       16 UUID bytes                 none
//	hotp       4-byte OTP target             hash, digits, counter, offset, sealed secret
//	totp       4-byte OTP target             start, step, window, offsets, sealed secret
//	hmacsha1   20-byte HMAC secret           challenge, secret XOR response
//	ooba       32-byte random target         JWK, encrypted next code, masked target
//	passkey    32-byte WebAuthn PRF output   none
//
// Persisted stands in for any factor using a share saved earlier with
// DerivedKey.Persist.
package factors
