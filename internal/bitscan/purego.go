//go:build purego

package bitscan

// FFS returns the index of the least significant set bit in word, or -1 if word is zero.
func FFS(word uint32) int {
	return GenericFFS(word)
}

// FLS returns the index of the most significant set bit in word, or -1 if word is zero.
func FLS(word uint32) int {
	return GenericFLS(word)
}

// FLSWide returns the index of the most significant set bit in value, or -1 if value is zero.
func FLSWide(value uint64) int {
	return GenericFLSWide(value)
}
