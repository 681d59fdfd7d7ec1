package tlsf

import (
	cerrors "github.com/cockroachdb/errors"
)

// Allocation owns one live block of an Allocator. Freeing it releases the block and empties the
// handle, so a second Free reports ErrDoubleFree instead of corrupting the free lists.
type Allocation struct {
	allocator *Allocator
	ptr       Ptr
}

// New allocates a block of at least size bytes and returns a handle that owns it
func (a *Allocator) New(size int) (*Allocation, error) {
	ptr, err := a.Malloc(size)
	if err != nil {
		return nil, err
	}

	return &Allocation{allocator: a, ptr: ptr}, nil
}

// NewAligned allocates a block of at least size bytes aligned to align and returns a handle that
// owns it
func (a *Allocator) NewAligned(align int, size int) (*Allocation, error) {
	ptr, err := a.Memalign(align, size)
	if err != nil {
		return nil, err
	}

	return &Allocation{allocator: a, ptr: ptr}, nil
}

// Ptr returns the block's address, or NullPtr once the allocation is freed
func (a *Allocation) Ptr() Ptr {
	return a.ptr
}

// Size returns the block's usable size, or 0 once the allocation is freed
func (a *Allocation) Size() int {
	if a.ptr == NullPtr {
		return 0
	}

	return a.allocator.BlockSize(a.ptr)
}

// Bytes returns the block's payload, or nil once the allocation is freed. The slice is only valid
// until the next Resize or Free.
func (a *Allocation) Bytes() []byte {
	if a.ptr == NullPtr {
		return nil
	}

	return a.allocator.Bytes(a.ptr)
}

// Free releases the block
func (a *Allocation) Free() error {
	if a.ptr == NullPtr {
		return cerrors.Wrapf(ErrDoubleFree, "allocation was already freed")
	}

	err := a.allocator.Free(a.ptr)
	if err != nil {
		return err
	}

	a.ptr = NullPtr
	return nil
}

// Resize changes the block to at least size bytes, moving it if it cannot be resized in place.
// Contents up to the smaller of the two sizes are kept. Resizing to 0 is not allowed; use Free.
func (a *Allocation) Resize(size int) error {
	if a.ptr == NullPtr {
		return cerrors.Wrapf(ErrDoubleFree, "allocation was already freed")
	}

	if size <= 0 {
		return cerrors.Wrapf(ErrInvalidSize, "cannot resize to %d bytes", size)
	}

	ptr, err := a.allocator.Realloc(a.ptr, size)
	if err != nil {
		return err
	}

	a.ptr = ptr
	return nil
}
