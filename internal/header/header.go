// Package header owns the bit layout of a block's size word. The size of a block is always a
// multiple of the allocator's alignment (at least 4 bytes), so the two lowest bits of the word
// are free to carry the block's own free flag and its physical predecessor's free flag. No other
// package manipulates these bits directly.
package header

const (
	// FreeBit is set when the block is in a free list
	FreeBit uint64 = 1 << 0
	// PrevFreeBit is set when the physically preceding block is free, which is the only time
	// the preceding block's link may be read
	PrevFreeBit uint64 = 1 << 1

	flagMask uint64 = FreeBit | PrevFreeBit
)

// Header is the unpacked form of a size word
type Header struct {
	Size     uint64
	Free     bool
	PrevFree bool
}

// Pack encodes h into a size word. h.Size must have its two low bits clear.
func Pack(h Header) uint64 {
	word := h.Size &^ flagMask
	if h.Free {
		word |= FreeBit
	}
	if h.PrevFree {
		word |= PrevFreeBit
	}

	return word
}

// Unpack decodes a size word
func Unpack(word uint64) Header {
	return Header{
		Size:     Size(word),
		Free:     IsFree(word),
		PrevFree: IsPrevFree(word),
	}
}

// Size strips the flag bits from word
func Size(word uint64) uint64 {
	return word &^ flagMask
}

// WithSize replaces the size held in word, leaving its flags untouched
func WithSize(word uint64, size uint64) uint64 {
	return (size &^ flagMask) | (word & flagMask)
}

func IsFree(word uint64) bool {
	return word&FreeBit != 0
}

func IsPrevFree(word uint64) bool {
	return word&PrevFreeBit != 0
}

// SetFree returns word with the free flag set to free
func SetFree(word uint64, free bool) uint64 {
	if free {
		return word | FreeBit
	}

	return word &^ FreeBit
}

// SetPrevFree returns word with the previous-free flag set to prevFree
func SetPrevFree(word uint64, prevFree bool) uint64 {
	if prevFree {
		return word | PrevFreeBit
	}

	return word &^ PrevFreeBit
}
