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

// Package secretsharing implements the K-of-N secret sharing primitive used
// to split a root secret across authentication factors.
//
// The scheme depends on the threshold:
//
//   - K = 1 (disjunction): every share is a copy of the secret. One factor
//     is enough and there is nothing to hide between shares.
//   - K = N (conjunction): N-1 shares are uniformly random and the last is
//     the XOR of the secret with all of them. Every share is required.
//   - 1 < K < N: Shamir's Secret Sharing. Each symbol of the secret is the
//     constant term of a random polynomial of degree K-1, and share i is
//     the polynomial evaluated at x = i.
//
// # Field Selection
//
// The polynomial field must contain N+1 distinct points (the N share
// indices plus x = 0) and at least 8 elements. The symbol width is rounded
// up to a divisor of 8, giving GF(2^4) for N < 16 and GF(2^8) for
// 16 <= N <= 255. Shares are therefore exactly as long as the secret in
// every mode.
//
// # Share Vectors
//
// Combine and Reshare take an N-length vector where nil marks an unknown
// share. Position i always holds the share evaluated at index i+1, so shares
// never carry a header; Tag returns the self-describing view.
//
// Reshare regenerates every slot from any K shares. For 1 < K < N it
// evaluates the interpolated polynomial at the missing indices without
// learning the original random coefficients. For K = N the XOR construction
// has no redundancy and Reshare fails with ErrPartialConjunction unless all
// N shares are present.
//
// # Usage Example
//
//	shares, err := secretsharing.Split(secret, 2, 3)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// The first factor is unavailable
//	shares[0] = nil
//
//	recovered, err := secretsharing.Combine(shares, 2, 3)
//	full, err := secretsharing.Reshare(shares, 2, 3)
//
// # Constraints
//
//   - 1 <= K <= N <= 255
//   - Secrets must not be empty
//   - All present shares in a vector must have the same length
//
// # References
//
// - Shamir, Adi (1979). "How to Share a Secret"
// - Herzberg et al. (1995). "Proactive Secret Sharing Or: How to Cope With Perpetual Leakage"
package secretsharing
