package tlsf

import (
	"github.com/vkngwrapper/arsenal/tlsf/internal/bitscan"
	"github.com/vkngwrapper/arsenal/tlsf/internal/header"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
)

func (a *Allocator) nullBlockRef() blockRef {
	return blockRef(a.encode(0, a.nullBlock))
}

func (a *Allocator) flBitmap() uint32 {
	return a.loadBitmap(a.flBitmapOff)
}

func (a *Allocator) setFLBitmap(value uint32) {
	a.storeBitmap(a.flBitmapOff, value)
}

func (a *Allocator) slBitmap(fl int) uint32 {
	return a.loadBitmap(a.slBitmapOff + 4*fl)
}

func (a *Allocator) setSLBitmap(fl int, value uint32) {
	a.storeBitmap(a.slBitmapOff+4*fl, value)
}

func (a *Allocator) headOffset(fl, sl int) int {
	return a.tableOff + a.word*(fl*a.slCount+sl)
}

func (a *Allocator) listHead(fl, sl int) blockRef {
	return blockRef(loadWord(a.regions[0].mem, a.headOffset(fl, sl), a.word))
}

func (a *Allocator) setListHead(fl, sl int, block blockRef) {
	storeWord(a.regions[0].mem, a.headOffset(fl, sl), a.word, uint64(block))
}

// constructControl clears both bitmaps and points every bucket at the null block
func (a *Allocator) constructControl() {
	null := a.nullBlockRef()
	a.store(uint64(null), 0, header.Pack(header.Header{Free: true}))
	a.setNextFree(null, null)
	a.setPrevFree(null, null)

	a.setFLBitmap(0)
	for fl := 0; fl < a.flCount; fl++ {
		a.setSLBitmap(fl, 0)
		for sl := 0; sl < a.slCount; sl++ {
			a.setListHead(fl, sl, null)
		}
	}
}

// searchSuitable returns the head of the first non-empty bucket at or after (fl, sl), along with
// that bucket's indices, or noBlock if every such bucket is empty.
func (a *Allocator) searchSuitable(fl, sl int) (blockRef, int, int) {
	slMap := a.slBitmap(fl) & (^uint32(0) << uint(sl))
	if slMap == 0 {
		// Nothing in this class, look for the next larger class with a free block
		flMap := a.flBitmap() & (^uint32(0) << uint(fl+1))
		if flMap == 0 {
			return noBlock, fl, sl
		}

		fl = bitscan.FFS(flMap)
		slMap = a.slBitmap(fl)
	}

	memutils.DebugAssert(slMap != 0, "second level bitmap %d is empty but its first level bit is set", fl)
	sl = bitscan.FFS(slMap)

	return a.listHead(fl, sl), fl, sl
}

// removeFreeAt unlinks block from bucket (fl, sl), clearing bitmap bits for buckets that empty
func (a *Allocator) removeFreeAt(block blockRef, fl, sl int) {
	prev := a.prevFree(block)
	next := a.nextFree(block)
	a.setPrevFree(next, prev)
	a.setNextFree(prev, next)

	if a.listHead(fl, sl) == block {
		a.setListHead(fl, sl, next)

		if next == a.nullBlockRef() {
			slMap := a.slBitmap(fl) &^ (1 << uint(sl))
			a.setSLBitmap(fl, slMap)

			if slMap == 0 {
				a.setFLBitmap(a.flBitmap() &^ (1 << uint(fl)))
			}
		}
	}

	a.blocksFreeCount--
	a.blocksFreeSize -= a.blockSize(block)
}

// insertFreeAt pushes block onto the head of bucket (fl, sl) and marks the bucket occupied
func (a *Allocator) insertFreeAt(block blockRef, fl, sl int) {
	current := a.listHead(fl, sl)
	memutils.DebugAssert(current != noBlock, "free list (%d, %d) has no head", fl, sl)
	memutils.DebugAssert(memutils.IsAligned(a.realAddress(a.toPtr(block)), uintptr(a.align)),
		"block at %#x is not aligned", uint64(block))

	a.setNextFree(block, current)
	a.setPrevFree(block, a.nullBlockRef())
	a.setPrevFree(current, block)

	a.setListHead(fl, sl, block)
	a.setFLBitmap(a.flBitmap() | 1<<uint(fl))
	a.setSLBitmap(fl, a.slBitmap(fl)|1<<uint(sl))

	a.blocksFreeCount++
	a.blocksFreeSize += a.blockSize(block)
}

func (a *Allocator) removeFree(block blockRef) {
	fl, sl := a.mapInsert(a.blockSize(block))
	a.removeFreeAt(block, fl, sl)
}

func (a *Allocator) insertFree(block blockRef) {
	fl, sl := a.mapInsert(a.blockSize(block))
	a.insertFreeAt(block, fl, sl)
}
