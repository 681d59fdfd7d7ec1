package tlsf_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/tlsf"
)

func TestPresetsAreValid(t *testing.T) {
	for _, config := range []tlsf.Config{tlsf.DefaultConfig(), tlsf.Config32(), tlsf.Config16()} {
		require.NoError(t, config.Validate(), config.WordSize.String())
	}
}

func TestDefaultConfigIntrospection(t *testing.T) {
	config := tlsf.DefaultConfig()

	require.Equal(t, 8, config.Alignment())
	require.Equal(t, 24, config.MinBlockSize())
	require.Equal(t, 1<<32, config.MaxBlockSize())
	require.Equal(t, 16, config.PoolOverhead())
	require.Equal(t, 8, config.AllocOverhead())
	require.Equal(t, 3472, config.ControlSize())
}

func TestSmallConfigIntrospection(t *testing.T) {
	config32 := tlsf.Config32()
	require.Equal(t, 4, config32.Alignment())
	require.Equal(t, 12, config32.MinBlockSize())
	require.Equal(t, 1<<24, config32.MaxBlockSize())
	require.Equal(t, 1312, config32.ControlSize())
	require.Equal(t, 128, tlsf.SlotCount(config32))

	config16 := tlsf.Config16()
	require.Equal(t, 4, config16.Alignment())
	require.Equal(t, 12, config16.MinBlockSize())
	require.Equal(t, 4096, config16.MaxBlockSize())
	require.Equal(t, 8, config16.PoolOverhead())
	require.Equal(t, 128, config16.ControlSize())
	require.Equal(t, 8, tlsf.SlotCount(config16))
}

func TestPoolSizeFor(t *testing.T) {
	config := tlsf.DefaultConfig()

	require.Equal(t, 120, config.PoolSizeFor(100, 8))
	require.Equal(t, 10528, config.PoolSizeFor(10000, 1))
	require.Equal(t, 8720, config.PoolSizeFor(8, 4096))
	require.Zero(t, config.PoolSizeFor(0, 8))
	require.Zero(t, config.PoolSizeFor(100, 24))
	require.Zero(t, config.PoolSizeFor(config.MaxBlockSize(), 8))
	require.Zero(t, tlsf.Config16().PoolSizeFor(3600, 4))
}

func TestPoolSizeForServesRequest(t *testing.T) {
	for _, config := range []tlsf.Config{tlsf.DefaultConfig(), tlsf.Config32(), tlsf.Config16()} {
		for _, size := range []int{1, 7, 24, 100, 129, 1000, 3000} {
			for _, align := range []int{1, 4, 8, 16, 64, 256, 1024} {
				poolSize := config.PoolSizeFor(size, align)
				if poolSize == 0 {
					continue
				}

				a := newAllocator(t, config, poolSize)

				ptr, err := a.Memalign(align, size)
				require.NoError(t, err, "%s size %d align %d", config.WordSize, size, align)
				require.Zero(t, a.Address(ptr)%uintptr(align))
				require.GreaterOrEqual(t, a.BlockSize(ptr), size)
				require.NoError(t, a.Validate())

				require.NoError(t, a.Free(ptr))
				require.Equal(t, 0, a.AllocationCount())
			}
		}
	}
}

func TestInvalidConfigs(t *testing.T) {
	testCases := map[string]tlsf.Config{
		"WordSize3":           {WordSize: 3, AlignLog2: 3, SLCountLog2: 4, FLMax: 32},
		"AlignBelowFlags":     {WordSize: tlsf.Word16, AlignLog2: 1, SLCountLog2: 2, FLMax: 12},
		"AlignBelowWord":      {WordSize: tlsf.Word64, AlignLog2: 2, SLCountLog2: 4, FLMax: 32},
		"NoSubdivision":       {WordSize: tlsf.Word64, AlignLog2: 3, SLCountLog2: 0, FLMax: 32},
		"TooManySubdivisions": {WordSize: tlsf.Word64, AlignLog2: 3, SLCountLog2: 6, FLMax: 32},
		"MaxBelowShift":       {WordSize: tlsf.Word64, AlignLog2: 3, SLCountLog2: 4, FLMax: 6},
		"MaxPastWord16":       {WordSize: tlsf.Word16, AlignLog2: 2, SLCountLog2: 2, FLMax: 15},
		"MaxPastWord64":       {WordSize: tlsf.Word64, AlignLog2: 3, SLCountLog2: 4, FLMax: 63},
		"TooManyClasses":      {WordSize: tlsf.Word64, AlignLog2: 3, SLCountLog2: 1, FLMax: 40},
	}

	for name, config := range testCases {
		t.Run(name, func(t *testing.T) {
			err := config.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, tlsf.ErrInvalidConfig))
			require.Zero(t, config.ControlSize())

			_, err = tlsf.Create(alignedMemory(1<<16, 64), tlsf.CreateOptions{Config: config})
			require.ErrorIs(t, err, tlsf.ErrInvalidConfig)
		})
	}
}

func TestEdgeConfigs(t *testing.T) {
	// The largest block size a 16-bit word can still address alongside a slot
	require.NoError(t, tlsf.Config{WordSize: tlsf.Word16, AlignLog2: 2, SLCountLog2: 2, FLMax: 14}.Validate())
	// A single first-level class
	require.NoError(t, tlsf.Config{WordSize: tlsf.Word64, AlignLog2: 3, SLCountLog2: 4, FLMax: 7}.Validate())
	// Wide alignment with 32 subdivisions
	require.NoError(t, tlsf.Config{WordSize: tlsf.Word32, AlignLog2: 4, SLCountLog2: 5, FLMax: 24}.Validate())
}

func TestWordSizeString(t *testing.T) {
	require.Equal(t, "Word16", tlsf.Word16.String())
	require.Equal(t, "Word32", tlsf.Word32.String())
	require.Equal(t, "Word64", tlsf.Word64.String())
}
