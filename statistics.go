package tlsf

import (
	"context"
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
	"golang.org/x/exp/slog"
)

// AllocationCount returns the number of live allocations
func (a *Allocator) AllocationCount() int {
	return a.allocCount
}

// FreeBlockCount returns the number of blocks in the free lists
func (a *Allocator) FreeBlockCount() int {
	return a.blocksFreeCount
}

// SumFreeSize returns the total payload bytes of every free block. Not all of it can be handed out
// in one request.
func (a *Allocator) SumFreeSize() int {
	return a.blocksFreeSize
}

// AddStatistics adds the allocator's counters to stats without walking any blocks. Each pool
// counts as one block.
func (a *Allocator) AddStatistics(stats *memutils.Statistics) {
	for slot := 1; slot < len(a.regions); slot++ {
		if a.regions[slot].live {
			stats.BlockCount++
			stats.BlockBytes += len(a.regions[slot].mem)
		}
	}

	stats.AllocationCount += a.allocCount
	stats.AllocationBytes += a.allocBytes
}

// AddDetailedStatistics walks every pool and adds each block to stats
func (a *Allocator) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	for slot := 1; slot < len(a.regions); slot++ {
		if a.regions[slot].live {
			a.addPoolStatistics(slot, stats)
		}
	}
}

func (a *Allocator) addPoolStatistics(slot int, stats *memutils.DetailedStatistics) {
	stats.BlockCount++
	stats.BlockBytes += len(a.regions[slot].mem)

	_ = a.visitPool(slot, func(ptr Ptr, size int, free bool) error {
		if free {
			stats.AddUnusedRange(size)
		} else {
			stats.AddAllocation(size)
		}
		return nil
	})
}

// VisitAllBlocks calls visit for every block of every pool in physical order and stops at the first
// error visit returns. visit must not allocate from or free to the allocator.
func (a *Allocator) VisitAllBlocks(visit func(pool Pool, ptr Ptr, size int, free bool) error) error {
	for slot := 1; slot < len(a.regions); slot++ {
		if !a.regions[slot].live {
			continue
		}

		pool := Pool(slot)
		err := a.visitPool(slot, func(ptr Ptr, size int, free bool) error {
			return visit(pool, ptr, size, free)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *Allocator) visitPool(slot int, visit func(ptr Ptr, size int, free bool) error) error {
	for block := blockRef(a.encode(slot, 0)); !a.isLast(block); block = a.next(block) {
		err := visit(a.toPtr(block), a.blockSize(block), a.isFree(block))
		if err != nil {
			return err
		}
	}

	return nil
}

// PrintDetailedMap writes a JSON object with one member per pool, keyed by pool, describing its
// totals and every block in it.
func (a *Allocator) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	for slot := 1; slot < len(a.regions); slot++ {
		if !a.regions[slot].live {
			continue
		}

		var stats memutils.DetailedStatistics
		stats.Clear()
		a.addPoolStatistics(slot, &stats)

		poolObj := objState.Name(strconv.Itoa(slot)).Object()
		poolObj.Name("TotalBytes").Int(stats.BlockBytes)
		poolObj.Name("UnusedBytes").Int(stats.UnusedRangeBytes)
		poolObj.Name("Allocations").Int(stats.AllocationCount)
		poolObj.Name("UnusedRanges").Int(stats.UnusedRangeCount)
		a.printPoolBlocks(slot, poolObj)
		poolObj.End()
	}
}

func (a *Allocator) printPoolBlocks(slot int, json jwriter.ObjectState) {
	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	_ = a.visitPool(slot, func(ptr Ptr, size int, free bool) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Offset").Int(a.offsetOf(uint64(ptr)))
		if free {
			obj.Name("Type").String("FREE")
		} else {
			obj.Name("Type").String("USED")
		}
		obj.Name("Size").Int(size)

		return nil
	})
}

// DebugLogAllAllocations logs every live allocation at debug level
func (a *Allocator) DebugLogAllAllocations(logger *slog.Logger) {
	if logger == nil {
		logger = a.logger
	}

	_ = a.VisitAllBlocks(func(pool Pool, ptr Ptr, size int, free bool) error {
		if !free {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "live allocation",
				slog.Int("pool", int(pool)),
				slog.Int("offset", a.offsetOf(uint64(ptr))),
				slog.Int("size", size))
		}
		return nil
	})
}
