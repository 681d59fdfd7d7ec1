package tlsf

import (
	"github.com/vkngwrapper/arsenal/tlsf/internal/bitscan"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
)

// adjustRequestSize rounds a requested size up to align and to the minimum block size. It returns
// 0 for sizes that cannot be served at all.
func (g *geometry) adjustRequestSize(size int, align int) int {
	if size <= 0 || size >= g.blockSizeMax {
		return 0
	}

	aligned := memutils.AlignUp(size, align)
	if aligned >= g.blockSizeMax {
		return 0
	}

	if aligned < g.blockSizeMin {
		return g.blockSizeMin
	}

	return aligned
}

// searchSize returns the size Malloc or Memalign looks for when asked for size bytes aligned to
// align, or 0 if the request cannot be served. Alignments above the block alignment reserve room
// for a leading gap that can be split off as a free block.
func (g *geometry) searchSize(size int, align int) int {
	memutils.DebugCheckPow2(align, "alignment")

	adjusted := g.adjustRequestSize(size, g.align)
	if adjusted == 0 || align <= g.align {
		return adjusted
	}

	return g.adjustRequestSize(adjusted+align+g.gapMinimum(), align)
}

// gapMinimum is the smallest leading gap Memalign can split off as a free block of its own
func (g *geometry) gapMinimum() int {
	return 4 * g.align
}

// mapInsert returns the free-list bucket that a block of the given size belongs in
func (g *geometry) mapInsert(size int) (fl int, sl int) {
	if size < g.smallBlockSize {
		// Small blocks are split linearly across the first class
		return 0, size / (g.smallBlockSize / g.slCount)
	}

	fl = bitscan.FLSWide(uint64(size))
	sl = (size >> (uint(fl) - g.slCountLog2)) ^ g.slCount
	fl -= int(g.flShift) - 1

	return fl, sl
}

// mapSearch returns the first bucket whose blocks are all at least size bytes. The size is rounded
// up to the next bucket boundary so that any block found there is large enough.
func (g *geometry) mapSearch(size int) (fl int, sl int) {
	return g.mapInsert(g.roundToClass(size))
}

// roundToClass rounds size up the way mapSearch does, so that any free block of the result lands
// in a bucket mapSearch(size) inspects
func (g *geometry) roundToClass(size int) int {
	if size >= g.smallBlockSize {
		size += (1 << (uint(bitscan.FLSWide(uint64(size))) - g.slCountLog2)) - 1
	}

	return size
}
