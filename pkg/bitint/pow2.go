// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used to validate and size
FFT transforms and sample rings.

Design Principles:
- Zero Allocations: all operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: no locks, syscalls, or blocking operations

Usage:

	// Reject a transform size that the FFT cannot use
	if !bitint.IsPowerOfTwo(size) { ... }

	// Suggest the nearest usable size in an error message
	hint := bitint.NextPowerOfTwo(1000) // 1024

	// Number of FFT stages for a transform size
	stages := bitint.Log2(2048) // 11
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
// The subtraction (size-1) keeps exact powers of two unchanged:
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

// PrevPowerOfTwo returns the largest power of 2 <= size, or 0 for size <= 0.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// Powers of two have exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the exponent of a power of two (Log2(1024) == 10).
// For other positive values it returns the floor of log2(n); for n <= 0 it returns -1.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}
