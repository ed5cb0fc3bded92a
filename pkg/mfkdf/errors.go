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
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-mfkdf/pkg/crypto/secretsharing"
)

var (
	// ErrValidation indicates an argument of the wrong shape, such as a nil
	// policy, an empty factor id or a factor type that does not match its slot.
	ErrValidation = errors.New("mfkdf: validation error")

	// ErrRange indicates a value outside its allowed domain, such as a
	// threshold greater than the factor count or a pad of the wrong size.
	ErrRange = errors.New("mfkdf: value out of range")

	// ErrInsufficientFactors indicates fewer usable factors than the threshold
	ErrInsufficientFactors = errors.New("mfkdf: insufficient factors")

	// ErrUnknownFactor indicates a reconstitution referenced an id that is
	// not part of the policy
	ErrUnknownFactor = errors.New("mfkdf: unknown factor")

	// ErrDuplicateID indicates a factor id appears more than once anywhere in
	// the policy tree
	ErrDuplicateID = errors.New("mfkdf: duplicate factor id")

	// ErrIntegrity indicates the persisted policy tag did not verify
	ErrIntegrity = errors.New("mfkdf: policy integrity violation")

	// ErrMaxDepth indicates a policy nests stacks deeper than allowed
	ErrMaxDepth = errors.New("mfkdf: policy nesting too deep")

	// ErrHintMismatch indicates a supplied factor contradicts its stored hint
	ErrHintMismatch = errors.New("mfkdf: factor does not match hint")

	// ErrUnsupportedFactor indicates a factor type that cannot be used for
	// the requested operation
	ErrUnsupportedFactor = errors.New("mfkdf: unsupported factor")

	// ErrRateLimited indicates a derive attempt was refused by the limiter
	ErrRateLimited = errors.New("mfkdf: too many derive attempts")
)

// ErrorType classifies err for metrics labels
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	case errors.Is(err, ErrInsufficientFactors), errors.Is(err, secretsharing.ErrInsufficientShares):
		return "insufficient_factors"
	case errors.Is(err, ErrHintMismatch):
		return "hint_mismatch"
	case errors.Is(err, ErrUnknownFactor):
		return "unknown_factor"
	case errors.Is(err, ErrDuplicateID):
		return "duplicate_id"
	case errors.Is(err, ErrMaxDepth):
		return "max_depth"
	case errors.Is(err, ErrRange), errors.Is(err, secretsharing.ErrOutOfRange):
		return "range"
	case errors.Is(err, ErrValidation), errors.Is(err, secretsharing.ErrInvalidArgument):
		return "validation"
	case errors.Is(err, ErrUnsupportedFactor):
		return "unsupported_factor"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}

// wrapShareError maps secret sharing failures onto engine sentinels while
// keeping the original error in the chain
func wrapShareError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, secretsharing.ErrInsufficientShares):
		return fmt.Errorf("%w: %w", ErrInsufficientFactors, err)
	case errors.Is(err, secretsharing.ErrOutOfRange):
		return fmt.Errorf("%w: %w", ErrRange, err)
	case errors.Is(err, secretsharing.ErrInvalidArgument):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	default:
		return err
	}
}
