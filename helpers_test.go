package tlsf_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/tlsf"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
)

// alignedMemory returns size bytes of Go memory starting on align
func alignedMemory(size int, align int) []byte {
	buf := make([]byte, size+align)
	address := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	offset := int(memutils.AlignUp(address, uintptr(align)) - address)
	return buf[offset : offset+size : offset+size]
}

func newAllocator(t *testing.T, config tlsf.Config, poolSize int) *tlsf.Allocator {
	memory := alignedMemory(config.ControlSize()+poolSize, config.Alignment())
	a, err := tlsf.CreateWithPool(memory, tlsf.CreateOptions{Config: config})
	require.NoError(t, err)
	require.NoError(t, a.Validate())
	return a
}

// requireConservation checks that every byte of every pool is accounted for by a block header,
// a payload or the trailing sentinel
func requireConservation(t *testing.T, a *tlsf.Allocator) {
	covered := map[tlsf.Pool]int{}
	err := a.VisitAllBlocks(func(pool tlsf.Pool, ptr tlsf.Ptr, size int, free bool) error {
		covered[pool] += a.Config().AllocOverhead() + size
		return nil
	})
	require.NoError(t, err)

	for _, pool := range a.Pools() {
		require.Equal(t, len(a.PoolMemory(pool)), covered[pool]+a.Config().AllocOverhead(), "pool %d", pool)
	}
}

type span struct {
	start, end uintptr
}

// requireDisjoint checks that no two live payloads overlap
func requireDisjoint(t *testing.T, a *tlsf.Allocator, ptrs []tlsf.Ptr) {
	spans := make([]span, 0, len(ptrs))
	for _, ptr := range ptrs {
		start := a.Address(ptr)
		spans = append(spans, span{start: start, end: start + uintptr(a.BlockSize(ptr))})
	}

	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			require.False(t, spans[i].start < spans[j].end && spans[j].start < spans[i].end,
				"payloads %d and %d overlap", i, j)
		}
	}
}
