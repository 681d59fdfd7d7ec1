//go:build !purego

package bitscan

import "math/bits"

// FFS returns the index of the least significant set bit in word, or -1 if word is zero.
func FFS(word uint32) int {
	if word == 0 {
		return -1
	}

	return bits.TrailingZeros32(word)
}

// FLS returns the index of the most significant set bit in word, or -1 if word is zero.
func FLS(word uint32) int {
	return 31 - bits.LeadingZeros32(word)
}

// FLSWide returns the index of the most significant set bit in value, or -1 if value is zero.
func FLSWide(value uint64) int {
	return 63 - bits.LeadingZeros64(value)
}
