package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(1, "one"))
	require.NoError(t, memutils.CheckPow2(uint64(4096), "page"))

	err := memutils.CheckPow2(12, "twelve")
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
	require.ErrorContains(t, err, "twelve is 12")

	require.ErrorIs(t, memutils.CheckPow2(0, "zero"), memutils.PowerOfTwoError)
}

func TestAlign(t *testing.T) {
	require.Equal(t, 0, memutils.AlignUp(0, 8))
	require.Equal(t, 8, memutils.AlignUp(1, 8))
	require.Equal(t, 8, memutils.AlignUp(8, 8))
	require.Equal(t, 16, memutils.AlignUp(9, 8))
	require.Equal(t, uintptr(4096), memutils.AlignUp(uintptr(4000), uintptr(4096)))

	require.Equal(t, 0, memutils.AlignDown(7, 8))
	require.Equal(t, 8, memutils.AlignDown(15, 8))
	require.Equal(t, uint64(1024), memutils.AlignDown(uint64(1030), uint64(16)))

	require.True(t, memutils.IsAligned(64, 16))
	require.False(t, memutils.IsAligned(65, 16))
}

func TestDetailedStatistics(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	require.Equal(t, 0.0, stats.Fragmentation())

	stats.AddAllocation(64)
	stats.AddAllocation(16)
	stats.AddUnusedRange(300)
	stats.AddUnusedRange(100)

	require.Equal(t, 2, stats.AllocationCount)
	require.Equal(t, 80, stats.AllocationBytes)
	require.Equal(t, 16, stats.AllocationSizeMin)
	require.Equal(t, 64, stats.AllocationSizeMax)
	require.Equal(t, 2, stats.UnusedRangeCount)
	require.Equal(t, 400, stats.UnusedRangeBytes)
	require.Equal(t, 100, stats.UnusedRangeSizeMin)
	require.Equal(t, 300, stats.UnusedRangeSizeMax)
	require.InDelta(t, 0.25, stats.Fragmentation(), 1e-9)

	var total memutils.DetailedStatistics
	total.Clear()
	total.AddDetailedStatistics(&stats)
	total.AddDetailedStatistics(&stats)
	require.Equal(t, 4, total.AllocationCount)
	require.Equal(t, 800, total.UnusedRangeBytes)
	require.Equal(t, 16, total.AllocationSizeMin)
	require.Equal(t, 300, total.UnusedRangeSizeMax)
}
