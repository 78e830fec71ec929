/*
Package bitint provides the power-of-two helpers used to size spectral
frames and ring buffers.

Frame sizes in this project are always powers of two so that ring indices
can wrap with a mask instead of a modulo, and so that the FFT backends run
their radix-2 paths.

	order := bitint.Log2(4096)          // 12
	if !bitint.IsPowerOfTwo(n) { ... }  // reject at construction
	mask := n - 1                       // valid only for powers of two

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before looking for the highest set bit so that
exact powers of two map to themselves:

	size = 8  ->  size-1 = 7 (0111)  ->  bits.Len(7) = 3  ->  1<<3 = 8
	size = 9  ->  size-1 = 8 (1000)  ->  bits.Len(8) = 4  ->  1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Non-positive
// sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has exactly one bit set, so clearing its lowest set bit with n&(n-1)
// leaves zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the exponent k with 1<<k == n. It returns -1 when n is not a
// power of two.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}

// Divides reports whether d is positive and divides n without remainder.
func Divides(d, n int) bool {
	return d > 0 && n%d == 0
}
