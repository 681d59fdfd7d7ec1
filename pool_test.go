package tlsf_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/tlsf"
)

func TestAddPoolErrors(t *testing.T) {
	config := tlsf.Config16()
	a, err := tlsf.Create(alignedMemory(config.ControlSize(), 4), tlsf.CreateOptions{Config: config})
	require.NoError(t, err)

	_, err = a.AddPool(alignedMemory(257, 4)[1:])
	require.ErrorIs(t, err, tlsf.ErrMisaligned)

	_, err = a.AddPool(alignedMemory(4, 4))
	require.ErrorIs(t, err, tlsf.ErrPoolSize)

	_, err = a.AddPool(alignedMemory(19, 4))
	require.ErrorIs(t, err, tlsf.ErrPoolSize)

	_, err = a.AddPool(alignedMemory(4104, 4))
	require.ErrorIs(t, err, tlsf.ErrPoolSize)

	// The largest pool whose single block stays below the block size limit
	pool, err := a.AddPool(alignedMemory(4100, 4))
	require.NoError(t, err)
	require.Equal(t, 4092, a.SumFreeSize())
	require.Len(t, a.PoolMemory(pool), 4100)

	// The smallest usable pool holds a single minimum block
	pool, err = a.AddPool(alignedMemory(20, 4))
	require.NoError(t, err)
	require.Equal(t, 4092+12, a.SumFreeSize())
	require.NoError(t, a.Validate())
}

func TestPoolMemoryIsTruncated(t *testing.T) {
	config := tlsf.DefaultConfig()
	a, err := tlsf.Create(alignedMemory(config.ControlSize(), 8), tlsf.CreateOptions{})
	require.NoError(t, err)

	pool, err := a.AddPool(alignedMemory(1027, 8))
	require.NoError(t, err)
	require.Len(t, a.PoolMemory(pool), 1024)
	require.Equal(t, 1008, a.SumFreeSize())
	requireConservation(t, a)
}

func TestValidateUnevenPool(t *testing.T) {
	config := tlsf.DefaultConfig()
	memory := alignedMemory(config.ControlSize()+3500, config.Alignment())

	a, err := tlsf.CreateWithPool(memory, tlsf.CreateOptions{Config: config})
	require.NoError(t, err)
	require.NoError(t, a.Validate())
	require.Len(t, a.PoolMemory(a.DefaultPool()), 3496)
	require.Equal(t, 3480, a.SumFreeSize())

	ptr, err := a.Malloc(500)
	require.NoError(t, err)
	require.NoError(t, a.Validate())

	require.NoError(t, a.Free(ptr))
	require.NoError(t, a.Validate())
	requireConservation(t, a)
}

func TestMultiplePools(t *testing.T) {
	config := tlsf.DefaultConfig()
	a, err := tlsf.Create(alignedMemory(config.ControlSize(), 8), tlsf.CreateOptions{})
	require.NoError(t, err)

	first, err := a.AddPool(alignedMemory(1024, 8))
	require.NoError(t, err)
	second, err := a.AddPool(alignedMemory(1024, 8))
	require.NoError(t, err)
	require.Equal(t, []tlsf.Pool{first, second}, a.Pools())

	ptr1, err := a.Malloc(900)
	require.NoError(t, err)
	ptr2, err := a.Malloc(900)
	require.NoError(t, err)

	pool1, err := a.PoolOf(ptr1)
	require.NoError(t, err)
	pool2, err := a.PoolOf(ptr2)
	require.NoError(t, err)
	require.ElementsMatch(t, []tlsf.Pool{first, second}, []tlsf.Pool{pool1, pool2})

	_, err = a.Malloc(900)
	require.ErrorIs(t, err, tlsf.ErrOutOfMemory)

	require.NoError(t, a.Validate())
	requireConservation(t, a)
	requireDisjoint(t, a, []tlsf.Ptr{ptr1, ptr2})
}

func TestRemovePool(t *testing.T) {
	config := tlsf.DefaultConfig()
	a, err := tlsf.Create(alignedMemory(config.ControlSize(), 8), tlsf.CreateOptions{})
	require.NoError(t, err)

	first, err := a.AddPool(alignedMemory(1024, 8))
	require.NoError(t, err)
	second, err := a.AddPool(alignedMemory(1024, 8))
	require.NoError(t, err)

	ptr, err := a.Malloc(100)
	require.NoError(t, err)
	pool, err := a.PoolOf(ptr)
	require.NoError(t, err)

	err = a.RemovePool(pool)
	require.ErrorIs(t, err, tlsf.ErrPoolInUse)

	require.NoError(t, a.Free(ptr))
	require.NoError(t, a.RemovePool(pool))
	require.NoError(t, a.Validate())
	require.Len(t, a.Pools(), 1)
	require.Equal(t, 1008, a.SumFreeSize())

	err = a.RemovePool(pool)
	require.ErrorIs(t, err, tlsf.ErrInvalidPool)
	require.ErrorIs(t, a.RemovePool(tlsf.NoPool), tlsf.ErrInvalidPool)
	require.ErrorIs(t, a.RemovePool(tlsf.Pool(99)), tlsf.ErrInvalidPool)

	// Pointers into a removed pool are rejected
	require.ErrorIs(t, a.Free(ptr), tlsf.ErrInvalidPointer)

	// The vacated slot is handed out again
	readded, err := a.AddPool(alignedMemory(2048, 8))
	require.NoError(t, err)
	require.Equal(t, pool, readded)
	require.ElementsMatch(t, []tlsf.Pool{first, second}, a.Pools())
	require.NoError(t, a.Validate())
}

func TestRemoveDefaultPool(t *testing.T) {
	a := newAllocator(t, tlsf.DefaultConfig(), 4096)

	pool := a.DefaultPool()
	require.NotEqual(t, tlsf.NoPool, pool)
	require.NoError(t, a.RemovePool(pool))
	require.Equal(t, tlsf.NoPool, a.DefaultPool())

	_, err := a.Malloc(8)
	require.ErrorIs(t, err, tlsf.ErrOutOfMemory)
	require.Zero(t, a.FreeBlockCount())
	require.NoError(t, a.Validate())
}

func TestTooManyPools(t *testing.T) {
	config := tlsf.Config16()
	a, err := tlsf.Create(alignedMemory(config.ControlSize(), 4), tlsf.CreateOptions{Config: config})
	require.NoError(t, err)

	// Slot 0 is the control region
	for i := 1; i < tlsf.SlotCount(config); i++ {
		_, err = a.AddPool(alignedMemory(64, 4))
		require.NoError(t, err)
	}

	_, err = a.AddPool(alignedMemory(64, 4))
	require.ErrorIs(t, err, tlsf.ErrTooManyPools)

	require.Len(t, a.Pools(), tlsf.SlotCount(config)-1)
	require.NoError(t, a.Validate())

	// Every pool serves allocations from the 16-bit address space
	var live []tlsf.Ptr
	for range a.Pools() {
		ptr, err := a.Malloc(40)
		require.NoError(t, err)
		live = append(live, ptr)
	}
	requireDisjoint(t, a, live)
	require.NoError(t, a.Validate())
}
