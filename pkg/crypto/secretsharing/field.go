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

// field implements arithmetic in GF(2^bits) using logarithm and
// exponentiation tables. Addition and subtraction are XOR.
type field struct {
	bits  int
	order int // number of non-zero elements, 2^bits - 1
	mask  byte
	exp   []byte
	log   []byte
}

// GF(2^4) uses x^4 + x + 1 with generator 0x02. GF(2^8) uses the AES
// polynomial x^8 + x^4 + x^3 + x + 1 with generator 0x03.
var (
	gf16  = newField(4, 0x13, 0x02)
	gf256 = newField(8, 0x11B, 0x03)
)

func newField(bits int, poly int, generator byte) *field {
	size := 1 << bits
	f := &field{
		bits:  bits,
		order: size - 1,
		mask:  byte(size - 1),
		exp:   make([]byte, size),
		log:   make([]byte, size),
	}
	var x byte = 1
	for i := 0; i < f.order; i++ {
		f.exp[i] = x
		f.log[x] = byte(i)
		x = f.multiplySlow(x, generator, poly)
	}
	f.exp[f.order] = f.exp[0]
	return f
}

// multiplySlow multiplies using the peasant algorithm. Only used while
// building the tables.
func (f *field) multiplySlow(a, b byte, poly int) byte {
	var p int
	aa := int(a)
	top := 1 << f.bits
	for i := 0; i < f.bits; i++ {
		if b&1 != 0 {
			p ^= aa
		}
		aa <<= 1
		if aa&top != 0 {
			aa ^= poly
		}
		b >>= 1
	}
	return byte(p) & f.mask
}

func (f *field) add(a, b byte) byte {
	return a ^ b
}

func (f *field) mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return f.exp[(int(f.log[a])+int(f.log[b]))%f.order]
}

func (f *field) inv(a byte) byte {
	if a == 0 {
		panic("secretsharing: division by zero in GF(2^n)")
	}
	return f.exp[(f.order-int(f.log[a]))%f.order]
}

func (f *field) div(a, b byte) byte {
	return f.mul(a, f.inv(b))
}

// evaluate evaluates the polynomial with the given coefficients (constant
// term first) at x using Horner's method.
func (f *field) evaluate(coeffs []byte, x byte) byte {
	if len(coeffs) == 0 {
		return 0
	}
	result := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		result = f.add(f.mul(result, x), coeffs[i])
	}
	return result
}

// basis returns the Lagrange basis values l_i(x) for the points xs, so that
// p(x) = sum(y_i * l_i(x)) for any polynomial of degree < len(xs).
func (f *field) basis(xs []byte, x byte) []byte {
	weights := make([]byte, len(xs))
	for i, xi := range xs {
		var num, den byte = 1, 1
		for j, xj := range xs {
			if i == j {
				continue
			}
			num = f.mul(num, f.add(x, xj))
			den = f.mul(den, f.add(xi, xj))
		}
		weights[i] = f.div(num, den)
	}
	return weights
}

// symbols returns the number of field elements packed into one byte.
func (f *field) symbols() int {
	return 8 / f.bits
}

// symbol extracts symbol j (most significant first) from b.
func (f *field) symbol(b byte, j int) byte {
	shift := 8 - f.bits*(j+1)
	return (b >> shift) & f.mask
}

// pack places symbol value v at position j of b.
func (f *field) pack(b byte, j int, v byte) byte {
	shift := 8 - f.bits*(j+1)
	return b | (v&f.mask)<<shift
}
