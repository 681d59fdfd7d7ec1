package tlsf

import (
	"github.com/vkngwrapper/arsenal/tlsf/internal/header"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
)

// Block layout, relative to the block's size word at r and with F = alignment:
//
//	r-F  prev_phys  valid only while the previous block is free; otherwise the tail of its payload
//	r    size       payload size with the free and prev-free flags in the low bits
//	r+F  next_free  valid only while this block is free; otherwise the start of its payload
//	r+2F prev_free  valid only while this block is free
//
// The next physical block's size word is at r+F+size.

func (a *Allocator) header(block blockRef) header.Header {
	return header.Unpack(a.load(uint64(block), 0))
}

func (a *Allocator) setHeader(block blockRef, h header.Header) {
	a.store(uint64(block), 0, header.Pack(h))
}

func (a *Allocator) blockSize(block blockRef) int {
	return int(header.Size(a.load(uint64(block), 0)))
}

func (a *Allocator) setBlockSize(block blockRef, size int) {
	word := a.load(uint64(block), 0)
	a.store(uint64(block), 0, header.WithSize(word, uint64(size)))
}

func (a *Allocator) isLast(block blockRef) bool {
	return a.blockSize(block) == 0
}

func (a *Allocator) isFree(block blockRef) bool {
	return header.IsFree(a.load(uint64(block), 0))
}

func (a *Allocator) setFree(block blockRef, free bool) {
	word := a.load(uint64(block), 0)
	a.store(uint64(block), 0, header.SetFree(word, free))
}

func (a *Allocator) isPrevFree(block blockRef) bool {
	return header.IsPrevFree(a.load(uint64(block), 0))
}

func (a *Allocator) setPrevFreeFlag(block blockRef, prevFree bool) {
	word := a.load(uint64(block), 0)
	a.store(uint64(block), 0, header.SetPrevFree(word, prevFree))
}

// The link accessors below are the free view of a block. Reading them through a used block would
// read payload bytes, so they are guarded in debug builds.

func (a *Allocator) nextFree(block blockRef) blockRef {
	memutils.DebugAssert(a.isFree(block), "read next_free of used block %#x", uint64(block))
	return blockRef(a.load(uint64(block), a.align))
}

func (a *Allocator) setNextFree(block blockRef, next blockRef) {
	memutils.DebugAssert(a.isFree(block), "wrote next_free of used block %#x", uint64(block))
	a.store(uint64(block), a.align, uint64(next))
}

func (a *Allocator) prevFree(block blockRef) blockRef {
	memutils.DebugAssert(a.isFree(block), "read prev_free of used block %#x", uint64(block))
	return blockRef(a.load(uint64(block), 2*a.align))
}

func (a *Allocator) setPrevFree(block blockRef, prev blockRef) {
	memutils.DebugAssert(a.isFree(block), "wrote prev_free of used block %#x", uint64(block))
	a.store(uint64(block), 2*a.align, uint64(prev))
}

// prevPhys returns the block physically before block. It is only stored while that block is free.
func (a *Allocator) prevPhys(block blockRef) blockRef {
	memutils.DebugAssert(a.isPrevFree(block), "read prev_phys of block %#x whose previous block is used", uint64(block))
	return blockRef(a.load(uint64(block), -a.align))
}

func (a *Allocator) setPrevPhys(block blockRef, prev blockRef) {
	a.store(uint64(block), -a.align, uint64(prev))
}

// next returns the block physically after block
func (a *Allocator) next(block blockRef) blockRef {
	memutils.DebugAssert(!a.isLast(block), "stepped past the sentinel at %#x", uint64(block))
	return block + blockRef(a.align+a.blockSize(block))
}

// linkNext records block as its successor's prev_phys and returns the successor
func (a *Allocator) linkNext(block blockRef) blockRef {
	next := a.next(block)
	a.setPrevPhys(next, block)
	return next
}

func (a *Allocator) markFree(block blockRef) {
	next := a.linkNext(block)
	a.setPrevFreeFlag(next, true)
	a.setFree(block, true)
}

func (a *Allocator) markUsed(block blockRef) {
	next := a.next(block)
	a.setPrevFreeFlag(next, false)
	a.setFree(block, false)
}

// canSplit reports whether block can give up everything past size and still leave a remainder
// with a header and a minimum-sized payload
func (a *Allocator) canSplit(block blockRef, size int) bool {
	return a.blockSize(block) >= 4*a.align+size
}

// split shrinks block to size and turns the rest into a new free block, which it returns.
// The remainder's prev-free flag is left for the caller to set.
func (a *Allocator) split(block blockRef, size int) blockRef {
	remaining := block + blockRef(a.align+size)
	remainSize := a.blockSize(block) - (size + a.align)

	memutils.DebugAssert(remainSize >= a.blockSizeMin, "split left a remainder of %d bytes", remainSize)
	memutils.DebugAssert(memutils.IsAligned(a.realAddress(a.toPtr(remaining)), uintptr(a.align)),
		"split remainder at %#x is not aligned", uint64(remaining))

	a.setHeader(remaining, header.Header{Size: uint64(remainSize)})
	a.setBlockSize(block, size)
	a.markFree(remaining)

	return remaining
}

// absorb grows prev over block, its physical successor. Flags on prev are kept.
func (a *Allocator) absorb(prev blockRef, block blockRef) blockRef {
	memutils.DebugAssert(!a.isLast(prev), "sentinel at %#x cannot absorb a block", uint64(prev))

	a.setBlockSize(prev, a.blockSize(prev)+a.blockSize(block)+a.align)
	a.linkNext(prev)

	return prev
}

// mergePrev merges block into its physical predecessor if that block is free
func (a *Allocator) mergePrev(block blockRef) blockRef {
	if a.isPrevFree(block) {
		prev := a.prevPhys(block)
		memutils.DebugAssert(a.isFree(prev), "block %#x is marked prev-free but %#x is used", uint64(block), uint64(prev))

		a.removeFree(prev)
		block = a.absorb(prev, block)
	}

	return block
}

// mergeNext merges block's physical successor into block if that block is free
func (a *Allocator) mergeNext(block blockRef) blockRef {
	next := a.next(block)
	if a.isFree(next) {
		a.removeFree(next)
		block = a.absorb(block, next)
	}

	return block
}

// trimFree returns any space in the free block past size to the free lists
func (a *Allocator) trimFree(block blockRef, size int) {
	memutils.DebugAssert(a.isFree(block), "trimFree on used block %#x", uint64(block))

	if a.canSplit(block, size) {
		remaining := a.split(block, size)
		a.linkNext(block)
		a.setPrevFreeFlag(remaining, true)
		a.insertFree(remaining)
	}
}

// trimUsed returns any space in the used block past size to the free lists, coalescing it with a
// free successor
func (a *Allocator) trimUsed(block blockRef, size int) {
	memutils.DebugAssert(!a.isFree(block), "trimUsed on free block %#x", uint64(block))

	if a.canSplit(block, size) {
		remaining := a.split(block, size)
		a.setPrevFreeFlag(remaining, false)
		remaining = a.mergeNext(remaining)
		a.poison(remaining)
		a.insertFree(remaining)
	}
}

// trimFreeLeading returns the first size bytes of the free block, header included, to the free
// lists and returns the block that starts after them
func (a *Allocator) trimFreeLeading(block blockRef, size int) blockRef {
	remaining := block

	if a.canSplit(block, size) {
		remaining = a.split(block, size-a.align)
		a.setPrevFreeFlag(remaining, true)
		a.linkNext(block)
		a.insertFree(block)
	}

	return remaining
}

// locateFree finds and unlinks the smallest-class free block of at least size bytes
func (a *Allocator) locateFree(size int) blockRef {
	if size == 0 {
		return noBlock
	}

	fl, sl := a.mapSearch(size)
	if fl >= a.flCount {
		return noBlock
	}

	block, fl, sl := a.searchSuitable(fl, sl)
	if block == noBlock {
		return noBlock
	}

	memutils.DebugAssert(a.blockSize(block) >= size, "located block of %d bytes for a request of %d", a.blockSize(block), size)
	a.removeFreeAt(block, fl, sl)

	return block
}

// prepareUsed trims a located block down to size, marks it used and returns its payload
func (a *Allocator) prepareUsed(block blockRef, size int) Ptr {
	if !memutils.ValidateMagicValue(a.poisonRegion(block)) {
		panic("tlsf: free block was written to after it was freed")
	}

	a.trimFree(block, size)
	a.markUsed(block)

	a.allocCount++
	a.allocBytes += a.blockSize(block)

	return a.toPtr(block)
}

// poisonRegion is the part of a free block's payload not occupied by its links or by the next
// block's prev_phys
func (a *Allocator) poisonRegion(block blockRef) []byte {
	mem, offset := a.memory(uint64(block), 0)
	return mem[offset+3*a.align : offset+a.blockSize(block)]
}

func (a *Allocator) poison(block blockRef) {
	if memutils.CorruptionDetectionEnabled {
		memutils.WriteMagicValue(a.poisonRegion(block))
	}
}
