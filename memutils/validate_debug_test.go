//go:build debug_mem_utils

package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
)

func TestMagicValueRoundTrip(t *testing.T) {
	region := make([]byte, 23)
	memutils.WriteMagicValue(region)
	require.True(t, memutils.ValidateMagicValue(region))

	region[21] ^= 0xff
	require.False(t, memutils.ValidateMagicValue(region))

	memutils.WriteMagicValue(region)
	region[3] = 0
	require.False(t, memutils.ValidateMagicValue(region))
}

func TestDebugAssertPanics(t *testing.T) {
	require.NotPanics(t, func() { memutils.DebugAssert(true, "never") })
	require.PanicsWithValue(t, "block 12 is broken", func() {
		memutils.DebugAssert(false, "block %d is broken", 12)
	})
}

func TestDebugCheckPow2Panics(t *testing.T) {
	require.NotPanics(t, func() { memutils.DebugCheckPow2(64, "alignment") })
	require.Panics(t, func() { memutils.DebugCheckPow2(48, "alignment") })
}
