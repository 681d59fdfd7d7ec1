package tlsf

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig is returned when a Config violates one of its constraints
	ErrInvalidConfig = errors.New("tlsf: invalid configuration")
	// ErrMisaligned is returned when memory passed to Create or AddPool does not start on the
	// configured alignment
	ErrMisaligned = errors.New("tlsf: memory is not aligned")
	// ErrPoolSize is returned when memory is too small or too large to be used as a pool or
	// control region
	ErrPoolSize = errors.New("tlsf: memory size out of range")
	// ErrTooManyPools is returned when every pool slot of an allocator is occupied
	ErrTooManyPools = errors.New("tlsf: too many pools")
	// ErrInvalidPool is returned when a Pool does not name a live pool of the allocator
	ErrInvalidPool = errors.New("tlsf: invalid pool")
	// ErrPoolInUse is returned when removing a pool that still has live allocations
	ErrPoolInUse = errors.New("tlsf: pool has live allocations")
	// ErrInvalidSize is returned for zero-sized requests and requests at or above the block size limit
	ErrInvalidSize = errors.New("tlsf: invalid allocation size")
	// ErrInvalidAlignment is returned when a requested alignment is not a power of two
	ErrInvalidAlignment = errors.New("tlsf: invalid alignment")
	// ErrOutOfMemory is returned when no free block can satisfy a request
	ErrOutOfMemory = errors.New("tlsf: out of memory")
	// ErrInvalidPointer is returned when a Ptr does not point at a block payload of the allocator
	ErrInvalidPointer = errors.New("tlsf: invalid pointer")
	// ErrDoubleFree is returned when freeing or resizing a block that is already free
	ErrDoubleFree = errors.New("tlsf: block is already free")
)
