package heap

import (
	"context"
	"io"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/arsenal/tlsf"
	"github.com/vkngwrapper/arsenal/tlsf/internal/utils"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
	"golang.org/x/exp/slog"
)

// DefaultRegionSize is the size of the regions a Heap acquires when HeapOptions.RegionSize is 0
const DefaultRegionSize = 1 << 20

var (
	// ErrRegionLimit is returned when a Heap needs another region but already holds
	// HeapOptions.MaxRegions of them
	ErrRegionLimit = errors.New("heap: region limit reached")
	// ErrUnreleased is returned by Close while allocations are still live
	ErrUnreleased = errors.New("heap: allocations have not been freed")
)

// HeapOptions configures a new Heap
type HeapOptions struct {
	// Config holds the tuning parameters of the underlying allocator. The zero value selects
	// tlsf.DefaultConfig.
	Config tlsf.Config
	Logger *slog.Logger
	// Source supplies the regions the heap grows into. Nil selects DefaultSource.
	Source RegionSource
	// RegionSize is the size of each region the heap acquires. Larger requests acquire a region
	// big enough to hold them. It is capped at Config.MaxBlockSize.
	RegionSize int
	// MaxRegions bounds the number of regions held at once. 0 means no bound.
	MaxRegions int
	// UseMutex makes every method safe for concurrent use
	UseMutex bool
}

// Heap is a tlsf.Allocator that acquires a new region from its RegionSource whenever a request
// cannot be served, and gives empty regions back on Trim.
type Heap struct {
	mutex  utils.OptionalRWMutex
	logger *slog.Logger

	allocator *tlsf.Allocator
	config    tlsf.Config
	source    RegionSource

	regionSize int
	maxRegions int

	// regions maps each pool to the region it was added from, exactly as the source returned it
	regions *swiss.Map[tlsf.Pool, []byte]
}

// New creates a Heap with no regions. The allocator's control structure is taken from the Go heap.
func New(options HeapOptions) (*Heap, error) {
	config := options.Config
	if config == (tlsf.Config{}) {
		config = tlsf.DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	source := options.Source
	if source == nil {
		source = DefaultSource()
	}

	control, err := GoSource{Alignment: config.Alignment()}.Acquire(config.ControlSize())
	if err != nil {
		return nil, err
	}

	allocator, err := tlsf.Create(control, tlsf.CreateOptions{Config: config, Logger: logger})
	if err != nil {
		return nil, err
	}

	regionSize := options.RegionSize
	if regionSize <= 0 {
		regionSize = DefaultRegionSize
	}
	if regionSize > config.MaxBlockSize() {
		regionSize = config.MaxBlockSize()
	}

	return &Heap{
		mutex:      utils.OptionalRWMutex{UseMutex: options.UseMutex},
		logger:     logger,
		allocator:  allocator,
		config:     config,
		source:     source,
		regionSize: regionSize,
		maxRegions: options.MaxRegions,
		regions:    swiss.NewMap[tlsf.Pool, []byte](8),
	}, nil
}

// Malloc returns a block of at least size bytes, acquiring a region if no pool can serve it
func (h *Heap) Malloc(size int) (tlsf.Ptr, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.retry(size, h.config.Alignment(), func() (tlsf.Ptr, error) {
		return h.allocator.Malloc(size)
	})
}

// Memalign returns a block of at least size bytes aligned to align, acquiring a region if no
// pool can serve it
func (h *Heap) Memalign(align int, size int) (tlsf.Ptr, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.retry(size, align, func() (tlsf.Ptr, error) {
		return h.allocator.Memalign(align, size)
	})
}

// Realloc resizes the block at ptr as tlsf.Allocator.Realloc does, acquiring a region if the block
// has to move and no pool can hold it
func (h *Heap) Realloc(ptr tlsf.Ptr, size int) (tlsf.Ptr, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.retry(size, h.config.Alignment(), func() (tlsf.Ptr, error) {
		return h.allocator.Realloc(ptr, size)
	})
}

// Free returns the block at ptr to the heap. Regions are not released until Trim.
func (h *Heap) Free(ptr tlsf.Ptr) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.allocator.Free(ptr)
}

// Bytes returns the payload of the block at ptr
func (h *Heap) Bytes(ptr tlsf.Ptr) []byte {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.allocator.Bytes(ptr)
}

// BlockSize returns the usable size of the block at ptr
func (h *Heap) BlockSize(ptr tlsf.Ptr) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.allocator.BlockSize(ptr)
}

// Address returns the machine address of the payload at ptr
func (h *Heap) Address(ptr tlsf.Ptr) uintptr {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.allocator.Address(ptr)
}

// RegionCount returns the number of regions the heap holds
func (h *Heap) RegionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.regions.Count()
}

// retry runs allocate and, if it ran out of memory, acquires a region large enough for a request
// of size bytes aligned to align and runs it once more
func (h *Heap) retry(size int, align int, allocate func() (tlsf.Ptr, error)) (tlsf.Ptr, error) {
	ptr, err := allocate()
	if err == nil || !errors.Is(err, tlsf.ErrOutOfMemory) {
		return ptr, err
	}

	err = h.grow(size, align)
	if err != nil {
		return tlsf.NullPtr, err
	}

	return allocate()
}

func (h *Heap) grow(size int, align int) error {
	if h.maxRegions > 0 && h.regions.Count() >= h.maxRegions {
		return cerrors.Wrapf(ErrRegionLimit, "heap holds %d regions", h.regions.Count())
	}

	needed := h.config.PoolSizeFor(size, align)
	if needed == 0 {
		return cerrors.Wrapf(tlsf.ErrInvalidSize, "no region can hold %d bytes aligned to %d", size, align)
	}

	regionSize := h.regionSize
	if needed > regionSize {
		regionSize = needed
	}
	if regionSize > h.config.MaxBlockSize() {
		regionSize = h.config.MaxBlockSize()
	}

	region, err := h.source.Acquire(regionSize)
	if err != nil {
		return err
	}

	// Sources may round up, but a pool must stay below the block size limit
	poolMemory := region
	if len(poolMemory) > h.config.MaxBlockSize() {
		poolMemory = poolMemory[:h.config.MaxBlockSize()]
	}

	pool, err := h.allocator.AddPool(poolMemory)
	if err != nil {
		releaseErr := h.source.Release(region)
		if releaseErr != nil {
			h.logger.Error("error attempting to release region after failing to add it", slog.Any("error", releaseErr))
		}
		return err
	}

	h.regions.Put(pool, region)
	h.logger.Debug("Heap::grow", slog.Int("Pool", int(pool)), slog.Int("RegionSize", len(region)), slog.Int("Request", size))

	return nil
}

// Trim releases every region that has no live allocations and returns how many were released
func (h *Heap) Trim() (int, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.trim()
}

func (h *Heap) trim() (int, error) {
	var empty []tlsf.Pool
	h.regions.Iter(func(pool tlsf.Pool, region []byte) bool {
		empty = append(empty, pool)
		return false
	})

	released := 0
	for _, pool := range empty {
		err := h.allocator.RemovePool(pool)
		if errors.Is(err, tlsf.ErrPoolInUse) {
			continue
		} else if err != nil {
			return released, err
		}

		region, _ := h.regions.Get(pool)
		h.regions.Delete(pool)

		err = h.source.Release(region)
		if err != nil {
			return released, err
		}

		h.logger.Debug("Heap::Trim", slog.Int("Pool", int(pool)), slog.Int("RegionSize", len(region)))
		released++
	}

	return released, nil
}

// Close releases every region. If any allocation is still live, each one is logged at error
// level, nothing is released and an error wrapping ErrUnreleased is returned.
func (h *Heap) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if count := h.allocator.AllocationCount(); count > 0 {
		_ = h.allocator.VisitAllBlocks(func(pool tlsf.Pool, ptr tlsf.Ptr, size int, free bool) error {
			if !free {
				h.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
					slog.Int("pool", int(pool)),
					slog.Uint64("ptr", uint64(ptr)),
					slog.Int("size", size))
			}
			return nil
		})

		return cerrors.Wrapf(ErrUnreleased, "%d allocations are live", count)
	}

	_, err := h.trim()
	if err != nil {
		return err
	}

	h.allocator.Destroy()
	return nil
}

// AddStatistics adds the heap's counters to stats. Each region counts as one block.
func (h *Heap) AddStatistics(stats *memutils.Statistics) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	h.allocator.AddStatistics(stats)
}

// AddDetailedStatistics walks every region and adds each block to stats
func (h *Heap) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	h.allocator.AddDetailedStatistics(stats)
}

// PrintDetailedMap writes the heap's block map as JSON
func (h *Heap) PrintDetailedMap(writer *jwriter.Writer) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	h.allocator.PrintDetailedMap(writer)
}

// Validate checks the consistency of every region and free list
func (h *Heap) Validate() error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.allocator.Validate()
}
