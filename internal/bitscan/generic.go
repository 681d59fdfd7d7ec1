package bitscan

// genericFLS1 returns the 1-based index of the highest set bit in word, or 0 for a zero word.
// It narrows the search by halves so that the cost is the same for every input.
func genericFLS1(word uint32) int {
	bit := 32

	if word == 0 {
		bit--
	}
	if word&0xffff0000 == 0 {
		word <<= 16
		bit -= 16
	}
	if word&0xff000000 == 0 {
		word <<= 8
		bit -= 8
	}
	if word&0xf0000000 == 0 {
		word <<= 4
		bit -= 4
	}
	if word&0xc0000000 == 0 {
		word <<= 2
		bit -= 2
	}
	if word&0x80000000 == 0 {
		bit--
	}

	return bit
}

// GenericFFS is the portable find-first-set: the index of the least significant set bit, or -1.
func GenericFFS(word uint32) int {
	return genericFLS1(word&(^word+1)) - 1
}

// GenericFLS is the portable find-last-set: the index of the most significant set bit, or -1.
func GenericFLS(word uint32) int {
	return genericFLS1(word) - 1
}

// GenericFLSWide is GenericFLS over a 64-bit value. The high half is scanned first.
func GenericFLSWide(value uint64) int {
	high := uint32(value >> 32)
	if high != 0 {
		return 32 + GenericFLS(high)
	}

	return GenericFLS(uint32(value))
}
