package tlsf

import (
	"context"
	"io"

	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
	"golang.org/x/exp/slog"
)

// CreateOptions configures a new Allocator
type CreateOptions struct {
	// Config holds the allocator's tuning parameters. The zero value selects DefaultConfig.
	Config Config
	// Logger receives debug records for pool changes and failed requests. Nil discards them.
	Logger *slog.Logger
}

// Allocator is a two-level segregated fit allocator over caller-supplied memory. Its control
// structure lives at the start of the memory passed to Create, and every block header and free
// list link lives inside the pools added to it.
//
// Allocator is not safe for concurrent use. Independent allocators are fully independent.
type Allocator struct {
	geometry

	logger *slog.Logger

	// regions[0] is the control region, the rest are pools indexed by Pool
	regions   []region
	freeSlots []int

	allocCount      int
	allocBytes      int
	blocksFreeCount int
	blocksFreeSize  int

	defaultPool Pool
}

var _ memutils.Validatable = &Allocator{}

// Create builds an allocator whose control structure occupies the first Config.ControlSize()
// bytes of memory. The allocator has no pools until AddPool is called.
func Create(memory []byte, options CreateOptions) (*Allocator, error) {
	config := options.Config
	if config.isZero() {
		config = DefaultConfig()
	}

	g, err := newGeometry(config)
	if err != nil {
		return nil, err
	}

	base := addressOf(memory)
	if !memutils.IsAligned(base, uintptr(g.align)) {
		return nil, cerrors.Wrapf(ErrMisaligned, "control memory at %#x is not aligned to %d", base, g.align)
	}

	if len(memory) < g.controlSize {
		return nil, cerrors.Wrapf(ErrPoolSize, "control memory of %d bytes is smaller than the %d byte control structure", len(memory), g.controlSize)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a := &Allocator{
		geometry: g,
		logger:   logger,
		regions: []region{
			{mem: memory[:g.controlSize:g.controlSize], base: base, live: true},
		},
	}
	a.constructControl()

	a.logger.Debug("Allocator::Create",
		slog.String("WordSize", config.WordSize.String()),
		slog.Int("Alignment", g.align),
		slog.Int("SecondLevelCount", g.slCount),
		slog.Int("MaxBlockSize", g.blockSizeMax),
		slog.Int("ControlSize", g.controlSize))

	return a, nil
}

// CreateWithPool builds an allocator over the start of memory, as Create does, and adds the rest
// of memory as its first pool. That pool is returned by DefaultPool.
func CreateWithPool(memory []byte, options CreateOptions) (*Allocator, error) {
	a, err := Create(memory, options)
	if err != nil {
		return nil, err
	}

	pool, err := a.AddPool(memory[a.controlSize:])
	if err != nil {
		return nil, err
	}

	a.defaultPool = pool
	return a, nil
}

// Destroy exists for symmetry with Create. The allocator holds nothing beyond the caller's memory,
// so there is nothing to release.
func (a *Allocator) Destroy() {
	a.logger.Debug("Allocator::Destroy", slog.Int("AllocationCount", a.allocCount), slog.Int("PoolCount", a.poolCount()))
}

// Config returns the configuration the allocator was created with
func (a *Allocator) Config() Config {
	return a.config
}

// Malloc returns a block of at least size bytes. The payload is aligned to Config().Alignment().
func (a *Allocator) Malloc(size int) (Ptr, error) {
	adjusted := a.adjustRequestSize(size, a.align)
	if adjusted == 0 {
		return NullPtr, cerrors.Wrapf(ErrInvalidSize, "cannot allocate %d bytes", size)
	}

	block := a.locateFree(adjusted)
	if block == noBlock {
		a.logOutOfMemory("Allocator::Malloc", size, a.align)
		return NullPtr, cerrors.Wrapf(ErrOutOfMemory, "no free block of %d bytes", adjusted)
	}

	ptr := a.prepareUsed(block, adjusted)
	memutils.DebugValidate(a)

	return ptr, nil
}

// Memalign returns a block of at least size bytes whose payload address is a multiple of align,
// which must be a power of two.
func (a *Allocator) Memalign(align int, size int) (Ptr, error) {
	if err := memutils.CheckPow2(align, "alignment"); err != nil {
		return NullPtr, cerrors.Wrapf(ErrInvalidAlignment, "%v", err)
	}

	adjusted := a.adjustRequestSize(size, a.align)
	if adjusted == 0 {
		return NullPtr, cerrors.Wrapf(ErrInvalidSize, "cannot allocate %d bytes", size)
	}

	gapMinimum := a.gapMinimum()

	alignedSize := a.searchSize(size, align)
	if alignedSize == 0 {
		return NullPtr, cerrors.Wrapf(ErrInvalidSize, "cannot allocate %d bytes aligned to %d", size, align)
	}

	block := a.locateFree(alignedSize)
	if block == noBlock {
		a.logOutOfMemory("Allocator::Memalign", size, align)
		return NullPtr, cerrors.Wrapf(ErrOutOfMemory, "no free block of %d bytes", alignedSize)
	}

	payload := a.realAddress(a.toPtr(block))
	aligned := memutils.AlignUp(payload, uintptr(align))
	gap := int(aligned - payload)

	if gap != 0 && gap < gapMinimum {
		// Too small to split off, so move to a later aligned address
		offset := gapMinimum - gap
		if offset < align {
			offset = align
		}

		aligned = memutils.AlignUp(aligned+uintptr(offset), uintptr(align))
		gap = int(aligned - payload)
	}

	if gap != 0 {
		if !a.canSplit(block, gap) || a.blockSize(block)-gap < adjusted {
			a.insertFree(block)
			a.logOutOfMemory("Allocator::Memalign", size, align)
			return NullPtr, cerrors.Wrapf(ErrOutOfMemory, "block of %d bytes cannot hold a gap of %d", a.blockSize(block), gap)
		}

		block = a.trimFreeLeading(block, gap)
	}

	ptr := a.prepareUsed(block, adjusted)
	memutils.DebugValidate(a)

	return ptr, nil
}

// Free returns a block to the allocator, merging it with free physical neighbors. Freeing NullPtr
// does nothing.
func (a *Allocator) Free(ptr Ptr) error {
	if ptr == NullPtr {
		return nil
	}

	block, err := a.usedBlock(ptr)
	if err != nil {
		return err
	}

	a.allocCount--
	a.allocBytes -= a.blockSize(block)

	a.markFree(block)
	block = a.mergePrev(block)
	block = a.mergeNext(block)
	a.poison(block)
	a.insertFree(block)

	memutils.DebugValidate(a)
	return nil
}

// Realloc resizes the block at ptr to at least size bytes. It grows or shrinks in place when it
// can and otherwise moves the contents to a new block and frees the old one. A size of 0 frees ptr
// and returns NullPtr, and a NullPtr behaves as Malloc. If the block cannot be moved, ptr is left
// untouched and an error is returned.
func (a *Allocator) Realloc(ptr Ptr, size int) (Ptr, error) {
	if ptr != NullPtr && size == 0 {
		return NullPtr, a.Free(ptr)
	}

	if ptr == NullPtr {
		return a.Malloc(size)
	}

	block, err := a.usedBlock(ptr)
	if err != nil {
		return NullPtr, err
	}

	adjusted := a.adjustRequestSize(size, a.align)
	if adjusted == 0 {
		return NullPtr, cerrors.Wrapf(ErrInvalidSize, "cannot resize to %d bytes", size)
	}

	next := a.next(block)
	currentSize := a.blockSize(block)
	combined := currentSize + a.blockSize(next) + a.align

	if adjusted > currentSize && (!a.isFree(next) || adjusted > combined) {
		newPtr, err := a.Malloc(size)
		if err != nil {
			return NullPtr, err
		}

		copy(a.Bytes(newPtr), a.Bytes(ptr)[:min(currentSize, size)])

		err = a.Free(ptr)
		if err != nil {
			return NullPtr, err
		}

		return newPtr, nil
	}

	if adjusted > currentSize {
		a.mergeNext(block)
		a.markUsed(block)
	}

	a.trimUsed(block, adjusted)
	a.allocBytes += a.blockSize(block) - currentSize

	memutils.DebugValidate(a)
	return ptr, nil
}

// BlockSize returns the usable payload size of the block at ptr, which may exceed the size that
// was requested. It returns 0 for NullPtr and for pointers the allocator does not recognize.
func (a *Allocator) BlockSize(ptr Ptr) int {
	block, err := a.blockAt(ptr)
	if err != nil {
		return 0
	}

	return a.blockSize(block)
}

// Bytes returns the payload of the block at ptr. The slice's capacity ends at the payload so that
// appending to it cannot overwrite the next block's header. It returns nil for NullPtr and for
// pointers the allocator does not recognize.
func (a *Allocator) Bytes(ptr Ptr) []byte {
	block, err := a.blockAt(ptr)
	if err != nil {
		return nil
	}

	mem, offset := a.memory(uint64(ptr), 0)
	end := offset + a.blockSize(block)
	return mem[offset:end:end]
}

// Address returns the machine address of the payload at ptr
func (a *Allocator) Address(ptr Ptr) uintptr {
	if ptr == NullPtr {
		return 0
	}

	return a.realAddress(ptr)
}

// blockAt checks that ptr could be the payload of a block in a live pool and returns that block.
// It cannot tell a payload from an aligned address inside one.
func (a *Allocator) blockAt(ptr Ptr) (blockRef, error) {
	if ptr == NullPtr {
		return noBlock, cerrors.Wrapf(ErrInvalidPointer, "null pointer")
	}

	slot := a.slotOf(uint64(ptr))
	if slot == 0 || slot >= len(a.regions) || !a.regions[slot].live {
		return noBlock, cerrors.Wrapf(ErrInvalidPointer, "pointer %#x does not name a live pool", uint64(ptr))
	}

	mem := a.regions[slot].mem
	offset := a.offsetOf(uint64(ptr))
	if offset < a.align || offset >= len(mem)-a.align || !memutils.IsAligned(offset, a.align) {
		return noBlock, cerrors.Wrapf(ErrInvalidPointer, "pointer %#x is outside the payloads of pool %d", uint64(ptr), slot)
	}

	block := a.fromPtr(ptr)
	size := a.blockSize(block)
	if size == 0 || offset+size > len(mem)-a.align {
		return noBlock, cerrors.Wrapf(ErrInvalidPointer, "pointer %#x does not point at a block payload", uint64(ptr))
	}

	return block, nil
}

func (a *Allocator) usedBlock(ptr Ptr) (blockRef, error) {
	block, err := a.blockAt(ptr)
	if err != nil {
		return noBlock, err
	}

	if a.isFree(block) {
		return noBlock, cerrors.Wrapf(ErrDoubleFree, "block at %#x", uint64(ptr))
	}

	return block, nil
}

func (a *Allocator) logOutOfMemory(operation string, size int, align int) {
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, operation+" out of memory",
		slog.Int("size", size),
		slog.Int("alignment", align),
		slog.Int("freeBytes", a.blocksFreeSize),
		slog.Int("freeBlocks", a.blocksFreeCount))
}
