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

package secretsharing

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/bits"
)

// MaxShares is the largest supported share count.
const MaxShares = 255

var (
	// ErrInvalidArgument is returned when an argument has the wrong shape,
	// such as a share vector whose length does not match the share count.
	ErrInvalidArgument = errors.New("secretsharing: invalid argument")

	// ErrOutOfRange is returned when a value falls outside its allowed domain,
	// such as a threshold greater than the share count or an empty secret.
	ErrOutOfRange = errors.New("secretsharing: value out of range")

	// ErrInsufficientShares is returned when fewer than threshold shares are
	// available to combine or reshare.
	ErrInsufficientShares = errors.New("secretsharing: insufficient shares")

	// ErrPartialConjunction is returned when an n-of-n share vector is
	// reshared with one or more shares missing. The XOR construction has no
	// redundancy, so a missing share cannot be regenerated.
	ErrPartialConjunction = fmt.Errorf("%w: n-of-n reshare requires every share", ErrInsufficientShares)
)

// ShareConfig configures secret sharing parameters.
type ShareConfig struct {
	Threshold   int // K - minimum shares needed to reconstruct
	TotalShares int // N - total shares to create
}

// Shamir splits, combines and reshares secrets for one K-of-N
// configuration. The scheme degrades to plain copies when K = 1 and to an
// XOR conjunction when K = N; everything in between is Shamir's polynomial
// scheme over GF(2^4) or GF(2^8).
type Shamir struct {
	config *ShareConfig
	field  *field
}

// NewShamir creates a new Shamir instance with the given configuration.
// Returns an error if the configuration is invalid.
func NewShamir(config *ShareConfig) (*Shamir, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config cannot be nil", ErrInvalidArgument)
	}
	if config.TotalShares < 1 {
		return nil, fmt.Errorf("%w: total shares must be at least 1, got %d", ErrOutOfRange, config.TotalShares)
	}
	if config.TotalShares > MaxShares {
		return nil, fmt.Errorf("%w: total shares must be <= %d, got %d", ErrOutOfRange, MaxShares, config.TotalShares)
	}
	if config.Threshold < 1 {
		return nil, fmt.Errorf("%w: threshold must be at least 1, got %d", ErrOutOfRange, config.Threshold)
	}
	if config.Threshold > config.TotalShares {
		return nil, fmt.Errorf("%w: threshold (%d) must be <= total shares (%d)", ErrOutOfRange, config.Threshold, config.TotalShares)
	}

	s := &Shamir{config: config}
	if FieldBits(config.TotalShares) == 4 {
		s.field = gf16
	} else {
		s.field = gf256
	}
	return s, nil
}

// Split divides a secret into N shares. Share i belongs to slot i and is
// evaluated at index i+1.
func Split(secret []byte, threshold, total int) ([][]byte, error) {
	s, err := NewShamir(&ShareConfig{Threshold: threshold, TotalShares: total})
	if err != nil {
		return nil, err
	}
	return s.Split(secret)
}

// Combine reconstructs the secret from an N-length share vector in which
// unknown slots are nil.
func Combine(shares [][]byte, threshold, total int) ([]byte, error) {
	s, err := NewShamir(&ShareConfig{Threshold: threshold, TotalShares: total})
	if err != nil {
		return nil, err
	}
	return s.Combine(shares)
}

// Reshare rebuilds a complete N-length share vector from an N-length
// vector holding at least threshold shares.
func Reshare(shares [][]byte, threshold, total int) ([][]byte, error) {
	s, err := NewShamir(&ShareConfig{Threshold: threshold, TotalShares: total})
	if err != nil {
		return nil, err
	}
	return s.Reshare(shares)
}

// FieldBits returns the symbol width in bits used for N shares. The field
// must hold N+1 distinct points and at least 8 elements; the width is then
// rounded up to a divisor of 8 so that share data is byte for byte as long
// as the secret.
func FieldBits(total int) int {
	if total < 1 {
		total = 1
	}
	width := bits.Len(uint(total))
	if width < 3 {
		width = 3
	}
	if width <= 4 {
		return 4
	}
	return 8
}

// Split divides a secret into N shares, requiring K to reconstruct.
func (s *Shamir) Split(secret []byte) ([][]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret cannot be empty", ErrOutOfRange)
	}

	k, n := s.config.Threshold, s.config.TotalShares
	switch {
	case k == 1:
		shares := make([][]byte, n)
		for i := range shares {
			shares[i] = clone(secret)
		}
		return shares, nil
	case k == n:
		return s.splitConjunction(secret)
	default:
		return s.splitPolynomial(secret)
	}
}

// Combine reconstructs the secret from K or more shares. Nil entries mark
// slots whose share is unknown.
func (s *Shamir) Combine(shares [][]byte) ([]byte, error) {
	present, err := s.check(shares)
	if err != nil {
		return nil, err
	}

	k, n := s.config.Threshold, s.config.TotalShares
	switch {
	case k == 1:
		return clone(shares[present[0]]), nil
	case k == n:
		secret := make([]byte, len(shares[0]))
		for _, share := range shares {
			subtle.XORBytes(secret, secret, share)
		}
		return secret, nil
	default:
		points := s.points(shares, present)
		return s.interpolate(points, 0), nil
	}
}

// Reshare returns a complete share vector consistent with the supplied
// shares. For K = 1 every slot receives a copy of the secret; for K = N
// all shares must already be present; otherwise the polynomial through the
// first K supplied shares is evaluated at every index.
func (s *Shamir) Reshare(shares [][]byte) ([][]byte, error) {
	present, err := s.check(shares)
	if err != nil {
		if errors.Is(err, ErrInsufficientShares) && s.config.Threshold == s.config.TotalShares && s.config.Threshold > 1 {
			return nil, fmt.Errorf("%w (have %d of %d)", ErrPartialConjunction, len(present), s.config.TotalShares)
		}
		return nil, err
	}

	k, n := s.config.Threshold, s.config.TotalShares
	result := make([][]byte, n)
	switch {
	case k == 1:
		for i := range result {
			result[i] = clone(shares[present[0]])
		}
	case k == n:
		for i := range result {
			result[i] = clone(shares[i])
		}
	default:
		points := s.points(shares, present)
		for i := range result {
			result[i] = s.interpolate(points, byte(i+1))
		}
	}
	return result, nil
}

// check validates the share vector and returns the positions of the
// shares that are present.
func (s *Shamir) check(shares [][]byte) ([]int, error) {
	n := s.config.TotalShares
	if len(shares) != n {
		return nil, fmt.Errorf("%w: expected %d share slots, got %d", ErrInvalidArgument, n, len(shares))
	}

	size := -1
	present := make([]int, 0, n)
	for i, share := range shares {
		if share == nil {
			continue
		}
		if len(share) == 0 {
			return nil, fmt.Errorf("%w: share %d is empty", ErrOutOfRange, i)
		}
		if size >= 0 && len(share) != size {
			return nil, fmt.Errorf("%w: share %d has length %d, expected %d", ErrInvalidArgument, i, len(share), size)
		}
		size = len(share)
		present = append(present, i)
	}

	if len(present) < s.config.Threshold {
		return present, fmt.Errorf("%w: need %d, got %d", ErrInsufficientShares, s.config.Threshold, len(present))
	}
	return present, nil
}

// splitConjunction draws N-1 random shares and sets the last one so that
// the XOR of all N equals the secret.
func (s *Shamir) splitConjunction(secret []byte) ([][]byte, error) {
	n := s.config.TotalShares
	shares := make([][]byte, n)
	last := clone(secret)
	for i := 0; i < n-1; i++ {
		shares[i] = make([]byte, len(secret))
		if _, err := rand.Read(shares[i]); err != nil {
			return nil, fmt.Errorf("secretsharing: failed to generate random share: %w", err)
		}
		subtle.XORBytes(last, last, shares[i])
	}
	shares[n-1] = last
	return shares, nil
}

// splitPolynomial shares every symbol of the secret with an independent
// random polynomial of degree K-1 and evaluates it at 1..N.
func (s *Shamir) splitPolynomial(secret []byte) ([][]byte, error) {
	k, n := s.config.Threshold, s.config.TotalShares
	f := s.field
	perByte := f.symbols()

	shares := make([][]byte, n)
	for i := range shares {
		shares[i] = make([]byte, len(secret))
	}

	random := make([]byte, (k-1)*perByte*len(secret))
	if _, err := rand.Read(random); err != nil {
		return nil, fmt.Errorf("secretsharing: failed to generate random coefficients: %w", err)
	}
	defer zero(random)

	coeffs := make([]byte, k)
	defer zero(coeffs)
	offset := 0
	for byteIdx, b := range secret {
		for j := 0; j < perByte; j++ {
			coeffs[0] = f.symbol(b, j)
			for c := 1; c < k; c++ {
				coeffs[c] = random[offset] & f.mask
				offset++
			}
			for i := 0; i < n; i++ {
				y := f.evaluate(coeffs, byte(i+1))
				shares[i][byteIdx] = f.pack(shares[i][byteIdx], j, y)
			}
		}
	}
	return shares, nil
}

// points returns the first K present shares as tagged shares.
func (s *Shamir) points(shares [][]byte, present []int) []*Share {
	tagged := Tag(shares, s.config.TotalShares)
	points := make([]*Share, s.config.Threshold)
	for i := range points {
		points[i] = tagged[present[i]]
	}
	return points
}

// interpolate evaluates the polynomial through points at x, symbol by
// symbol. x = 0 yields the secret.
func (s *Shamir) interpolate(points []*Share, x byte) []byte {
	f := s.field
	xs := make([]byte, len(points))
	for i, p := range points {
		xs[i] = byte(p.Index)
	}
	weights := f.basis(xs, x)

	size := len(points[0].Value)
	out := make([]byte, size)
	for byteIdx := 0; byteIdx < size; byteIdx++ {
		for j := 0; j < f.symbols(); j++ {
			var y byte
			for i, p := range points {
				y = f.add(y, f.mul(f.symbol(p.Value[byteIdx], j), weights[i]))
			}
			out[byteIdx] = f.pack(out[byteIdx], j, y)
		}
	}
	return out
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
