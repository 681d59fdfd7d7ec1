package heap

import (
	"unsafe"

	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/arsenal/tlsf"
	"github.com/vkngwrapper/arsenal/tlsf/internal/utils"
	"golang.org/x/exp/slog"
)

// ByteAllocator hands out byte slices from a Heap in the shape of arrow's memory.Allocator. It
// remembers which block backs each slice it returned, keyed by the slice's first byte.
type ByteAllocator struct {
	mutex utils.OptionalRWMutex
	heap  *Heap
	live  *swiss.Map[uintptr, tlsf.Ptr]
}

// NewByteAllocator returns a ByteAllocator over heap. It is safe for concurrent use when the heap
// was created with UseMutex.
func NewByteAllocator(heap *Heap) *ByteAllocator {
	return &ByteAllocator{
		mutex: utils.OptionalRWMutex{UseMutex: heap.mutex.UseMutex},
		heap:  heap,
		live:  swiss.NewMap[uintptr, tlsf.Ptr](64),
	}
}

// Allocate returns a slice of size bytes, or nil if the heap cannot serve the request. A size of
// 0 returns an empty slice that needs no Free.
func (b *ByteAllocator) Allocate(size int) []byte {
	if size == 0 {
		return []byte{}
	}

	ptr, err := b.heap.Malloc(size)
	if err != nil {
		b.heap.logger.Debug("ByteAllocator::Allocate failed", slog.Int("size", size), slog.Any("error", err))
		return nil
	}

	buf := b.heap.Bytes(ptr)[:size]

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.live.Put(sliceAddress(buf), ptr)

	return buf
}

// Reallocate resizes a slice returned by Allocate, keeping its contents up to the smaller of the two
// sizes. It returns nil, leaving buf valid, if the heap cannot serve the request.
func (b *ByteAllocator) Reallocate(size int, buf []byte) []byte {
	ptr, ok := b.lookup(buf)
	if !ok {
		newBuf := b.Allocate(size)
		if newBuf != nil {
			copy(newBuf, buf)
		}
		return newBuf
	}

	if size == 0 {
		b.Free(buf)
		return []byte{}
	}

	newPtr, err := b.heap.Realloc(ptr, size)
	if err != nil {
		b.heap.logger.Debug("ByteAllocator::Reallocate failed", slog.Int("size", size), slog.Any("error", err))
		return nil
	}

	newBuf := b.heap.Bytes(newPtr)[:size]

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.live.Delete(sliceAddress(buf))
	b.live.Put(sliceAddress(newBuf), newPtr)

	return newBuf
}

// Free returns a slice from Allocate or Reallocate to the heap. Slices the allocator did not hand
// out are ignored.
func (b *ByteAllocator) Free(buf []byte) {
	ptr, ok := b.lookup(buf)
	if !ok {
		return
	}

	b.mutex.Lock()
	b.live.Delete(sliceAddress(buf))
	b.mutex.Unlock()

	err := b.heap.Free(ptr)
	if err != nil {
		b.heap.logger.Error("ByteAllocator::Free failed", slog.Any("error", err))
	}
}

// Allocated returns the number of slices that have not been freed
func (b *ByteAllocator) Allocated() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.live.Count()
}

func (b *ByteAllocator) lookup(buf []byte) (tlsf.Ptr, bool) {
	if cap(buf) == 0 {
		return tlsf.NullPtr, false
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.live.Get(sliceAddress(buf))
}

func sliceAddress(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}
