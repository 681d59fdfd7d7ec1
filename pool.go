package tlsf

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/tlsf/internal/header"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
	"golang.org/x/exp/slog"
)

// Pool identifies a region of memory added to an Allocator. Pool values are reused after the pool
// they named is removed.
type Pool uint32

// NoPool is never returned by AddPool
const NoPool Pool = 0

// AddPool adds mem to the allocator as one free block followed by a zero-size sentinel. mem must
// be aligned to the configured alignment and stay untouched by the caller until the pool is
// removed. Config.PoolOverhead bytes of it are never handed out.
func (a *Allocator) AddPool(mem []byte) (Pool, error) {
	base := addressOf(mem)
	if !memutils.IsAligned(base, uintptr(a.align)) {
		return NoPool, cerrors.Wrapf(ErrMisaligned, "pool memory at %#x is not aligned to %d", base, a.align)
	}

	overhead := 2 * a.align
	if len(mem) < overhead {
		return NoPool, cerrors.Wrapf(ErrPoolSize, "pool of %d bytes is smaller than the pool overhead", len(mem))
	}

	usable := memutils.AlignDown(len(mem)-overhead, a.align)
	if usable < a.blockSizeMin || usable >= a.blockSizeMax {
		return NoPool, cerrors.Wrapf(ErrPoolSize, "pool of %d usable bytes must be between %d and %d",
			usable, a.blockSizeMin, a.blockSizeMax-a.align)
	}

	slot, err := a.claimSlot()
	if err != nil {
		return NoPool, err
	}

	size := usable + overhead
	a.regions[slot] = region{mem: mem[:size:size], base: base, live: true}

	// The lead block's prev_phys would sit before the pool, so it is never marked prev-free
	block := blockRef(a.encode(slot, 0))
	a.setHeader(block, header.Header{Size: uint64(usable)})
	a.setHeader(a.next(block), header.Header{})
	a.markFree(block)
	a.poison(block)
	a.insertFree(block)

	a.logger.Debug("Allocator::AddPool", slog.Int("Pool", slot), slog.Int("Size", size), slog.Int("UsableSize", usable))

	memutils.DebugValidate(a)
	return Pool(slot), nil
}

// RemovePool forgets a pool. Every block allocated from it must have been freed. The pool's
// memory is not touched and belongs to the caller again once this returns.
func (a *Allocator) RemovePool(pool Pool) error {
	if !a.isLivePool(pool) {
		return cerrors.Wrapf(ErrInvalidPool, "pool %d", pool)
	}

	block := blockRef(a.encode(int(pool), 0))
	if !a.isFree(block) || !a.isLast(a.next(block)) {
		return cerrors.Wrapf(ErrPoolInUse, "pool %d", pool)
	}

	a.removeFree(block)

	a.regions[pool] = region{}
	a.freeSlots = append(a.freeSlots, int(pool))
	if pool == a.defaultPool {
		a.defaultPool = NoPool
	}

	a.logger.Debug("Allocator::RemovePool", slog.Int("Pool", int(pool)))

	memutils.DebugValidate(a)
	return nil
}

// Pools returns every live pool in ascending order
func (a *Allocator) Pools() []Pool {
	pools := make([]Pool, 0, a.poolCount())
	for slot := 1; slot < len(a.regions); slot++ {
		if a.regions[slot].live {
			pools = append(pools, Pool(slot))
		}
	}

	return pools
}

// DefaultPool returns the pool added by CreateWithPool, or NoPool if there is none
func (a *Allocator) DefaultPool() Pool {
	return a.defaultPool
}

// PoolMemory returns the memory backing pool, truncated to the part the allocator manages, or nil if
// pool is not live.
func (a *Allocator) PoolMemory(pool Pool) []byte {
	if !a.isLivePool(pool) {
		return nil
	}

	return a.regions[pool].mem
}

// PoolOf returns the pool that holds ptr
func (a *Allocator) PoolOf(ptr Ptr) (Pool, error) {
	if _, err := a.blockAt(ptr); err != nil {
		return NoPool, err
	}

	return Pool(a.slotOf(uint64(ptr))), nil
}

func (a *Allocator) isLivePool(pool Pool) bool {
	return pool != NoPool && int(pool) < len(a.regions) && a.regions[pool].live
}

func (a *Allocator) poolCount() int {
	return len(a.regions) - 1 - len(a.freeSlots)
}

// claimSlot returns the most recently vacated slot, or a new one
func (a *Allocator) claimSlot() (int, error) {
	if n := len(a.freeSlots); n > 0 {
		slot := a.freeSlots[n-1]
		a.freeSlots = a.freeSlots[:n-1]
		return slot, nil
	}

	if len(a.regions) >= a.slotCount {
		return 0, cerrors.Wrapf(ErrTooManyPools, "all %d pool slots are in use", a.slotCount-1)
	}

	a.regions = append(a.regions, region{})
	return len(a.regions) - 1, nil
}
