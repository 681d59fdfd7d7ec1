package tlsf

import (
	"github.com/pkg/errors"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
)

// Validate walks every pool and every free list and returns an error describing the first
// inconsistency it finds. It runs in time proportional to the number of blocks.
func (a *Allocator) Validate() error {
	null := a.nullBlockRef()
	if !a.isFree(null) || a.blockSize(null) != 0 {
		return errors.New("null block header is corrupt")
	}

	var freeCount, freeSize, allocCount, allocBytes int

	for slot := 1; slot < len(a.regions); slot++ {
		if !a.regions[slot].live {
			continue
		}

		stats, err := a.validatePool(slot)
		if err != nil {
			return err
		}

		freeCount += stats.UnusedRangeCount
		freeSize += stats.UnusedRangeBytes
		allocCount += stats.AllocationCount
		allocBytes += stats.AllocationBytes
	}

	listedCount, listedSize, err := a.validateFreeLists(freeCount)
	if err != nil {
		return err
	}

	if listedCount != freeCount {
		return errors.Errorf("free lists hold %d blocks but pools hold %d free blocks", listedCount, freeCount)
	}

	if listedSize != freeSize {
		return errors.Errorf("free lists hold %d bytes but pools hold %d free bytes", listedSize, freeSize)
	}

	if freeCount != a.blocksFreeCount || freeSize != a.blocksFreeSize {
		return errors.Errorf("free block count %d and size %d do not match the recorded %d and %d",
			freeCount, freeSize, a.blocksFreeCount, a.blocksFreeSize)
	}

	if allocCount != a.allocCount || allocBytes != a.allocBytes {
		return errors.Errorf("allocation count %d and size %d do not match the recorded %d and %d",
			allocCount, allocBytes, a.allocCount, a.allocBytes)
	}

	return nil
}

// validatePool walks the physical block chain of one pool
func (a *Allocator) validatePool(slot int) (memutils.DetailedStatistics, error) {
	var stats memutils.DetailedStatistics
	stats.Clear()

	mem := a.regions[slot].mem
	if !memutils.IsAligned(a.regions[slot].base, uintptr(a.align)) {
		return stats, errors.Errorf("pool %d is not aligned", slot)
	}

	block := blockRef(a.encode(slot, 0))
	if a.isPrevFree(block) {
		return stats, errors.Errorf("lead block of pool %d is marked as following a free block", slot)
	}

	prevFree := false
	prev := noBlock
	total := 0

	for {
		offset := a.offsetOf(uint64(block))
		if offset+a.word > len(mem) {
			return stats, errors.Errorf("block at offset %d of pool %d runs past the end of the pool", offset, slot)
		}

		h := a.header(block)
		size := int(h.Size)
		total += a.align + size

		if h.PrevFree != prevFree {
			return stats, errors.Errorf("block at offset %d of pool %d has prev-free %t but the previous block has free %t",
				offset, slot, h.PrevFree, prevFree)
		}

		if prevFree && a.prevPhys(block) != prev {
			return stats, errors.Errorf("block at offset %d of pool %d does not link back to the free block before it", offset, slot)
		}

		if size == 0 {
			if h.Free {
				return stats, errors.Errorf("sentinel of pool %d is marked free", slot)
			}
			break
		}

		if !memutils.IsAligned(size, a.align) || size < a.blockSizeMin || size >= a.blockSizeMax {
			return stats, errors.Errorf("block at offset %d of pool %d has invalid size %d", offset, slot, size)
		}

		if offset+a.align+size+a.align > len(mem) {
			return stats, errors.Errorf("block at offset %d of pool %d with size %d runs past the end of the pool", offset, slot, size)
		}

		if h.Free {
			if prevFree {
				return stats, errors.Errorf("free block at offset %d of pool %d was not merged with the free block before it", offset, slot)
			}
			stats.AddUnusedRange(size)
		} else {
			stats.AddAllocation(size)
		}

		prevFree = h.Free
		prev = block
		block = a.next(block)
	}

	if total != len(mem) {
		return stats, errors.Errorf("blocks of pool %d cover %d bytes but the pool holds %d", slot, total, len(mem))
	}

	stats.BlockCount = 1
	stats.BlockBytes = len(mem)

	return stats, nil
}

// validateFreeLists walks every bucket and checks it against both bitmaps. limit bounds each walk
// so that a cycle is reported rather than followed forever.
func (a *Allocator) validateFreeLists(limit int) (int, int, error) {
	null := a.nullBlockRef()
	count, size := 0, 0

	flMap := a.flBitmap()
	if flMap>>uint(a.flCount) != 0 {
		return 0, 0, errors.Errorf("first level bitmap %#x has bits past class %d", flMap, a.flCount-1)
	}

	for fl := 0; fl < a.flCount; fl++ {
		slMap := a.slBitmap(fl)
		if (flMap&(1<<uint(fl)) != 0) != (slMap != 0) {
			return 0, 0, errors.Errorf("first level bit %d does not match second level bitmap %#x", fl, slMap)
		}

		if a.slCount < bitmapBits && slMap>>uint(a.slCount) != 0 {
			return 0, 0, errors.Errorf("second level bitmap %d has bits past class %d", fl, a.slCount-1)
		}

		for sl := 0; sl < a.slCount; sl++ {
			head := a.listHead(fl, sl)
			occupied := slMap&(1<<uint(sl)) != 0

			if occupied != (head != null) {
				return 0, 0, errors.Errorf("free list (%d, %d) bitmap bit is %t but its head is %#x", fl, sl, occupied, uint64(head))
			}

			prev := null
			for block := head; block != null; block = a.nextFree(block) {
				if count >= limit {
					return 0, 0, errors.Errorf("free lists hold more than the %d free blocks in the pools", limit)
				}

				if !a.isLivePool(Pool(a.slotOf(uint64(block)))) {
					return 0, 0, errors.Errorf("free list (%d, %d) holds block %#x outside every pool", fl, sl, uint64(block))
				}

				if !a.isFree(block) {
					return 0, 0, errors.Errorf("block %#x is in free list (%d, %d) but is not free", uint64(block), fl, sl)
				}

				if a.prevFree(block) != prev {
					return 0, 0, errors.Errorf("block %#x in free list (%d, %d) has a broken back link", uint64(block), fl, sl)
				}

				blockSize := a.blockSize(block)
				if bfl, bsl := a.mapInsert(blockSize); bfl != fl || bsl != sl {
					return 0, 0, errors.Errorf("block %#x of size %d belongs in free list (%d, %d) but is in (%d, %d)",
						uint64(block), blockSize, bfl, bsl, fl, sl)
				}

				count++
				size += blockSize
				prev = block
			}
		}
	}

	return count, size, nil
}
