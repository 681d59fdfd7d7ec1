package tlsf_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/tlsf"
)

func TestMapInsert(t *testing.T) {
	config := tlsf.DefaultConfig()

	testCases := []struct {
		size   int
		fl, sl int
	}{
		{size: 24, fl: 0, sl: 3},
		{size: 64, fl: 0, sl: 8},
		{size: 120, fl: 0, sl: 15},
		{size: 128, fl: 1, sl: 0},
		{size: 200, fl: 1, sl: 9},
		{size: 255, fl: 1, sl: 15},
		{size: 256, fl: 2, sl: 0},
		{size: 4096, fl: 6, sl: 0},
		{size: 1<<32 - 8, fl: 25, sl: 15},
	}

	for _, testCase := range testCases {
		fl, sl := tlsf.MapInsert(config, testCase.size)
		require.Equal(t, testCase.fl, fl, "size %d", testCase.size)
		require.Equal(t, testCase.sl, sl, "size %d", testCase.size)
	}
}

func TestMapSearchRoundsUp(t *testing.T) {
	config := tlsf.DefaultConfig()

	// Small sizes map linearly, so there is nothing to round
	fl, sl := tlsf.MapSearch(config, 64)
	require.Equal(t, 0, fl)
	require.Equal(t, 8, sl)

	// 129 shares a bucket with 128, so the search starts one bucket up
	fl, sl = tlsf.MapInsert(config, 129)
	require.Equal(t, 1, fl)
	require.Equal(t, 0, sl)
	fl, sl = tlsf.MapSearch(config, 129)
	require.Equal(t, 1, fl)
	require.Equal(t, 1, sl)

	// Rounding can carry into the next first-level class
	fl, sl = tlsf.MapSearch(config, 250)
	require.Equal(t, 2, fl)
	require.Equal(t, 0, sl)
}

// Any block in a bucket at or past a request's search bucket must be big enough for the request
func TestMapSearchGuaranteesFit(t *testing.T) {
	for _, config := range []tlsf.Config{tlsf.Config16(), tlsf.Config32(), tlsf.DefaultConfig()} {
		step := config.Alignment()
		limit := 4096 - step

		for request := config.MinBlockSize(); request <= limit; request += step {
			searchFL, searchSL := tlsf.MapSearch(config, request)

			for block := config.MinBlockSize(); block <= limit; block += step {
				fl, sl := tlsf.MapInsert(config, block)
				found := fl > searchFL || (fl == searchFL && sl >= searchSL)
				if found && block < request {
					t.Fatalf("%s: block %d found for request %d", config.WordSize, block, request)
				}
			}
		}
	}
}

func TestAdjustRequestSize(t *testing.T) {
	config := tlsf.DefaultConfig()

	require.Equal(t, 0, tlsf.AdjustRequestSize(config, 0, 8))
	require.Equal(t, 0, tlsf.AdjustRequestSize(config, -1, 8))
	require.Equal(t, 24, tlsf.AdjustRequestSize(config, 1, 8))
	require.Equal(t, 24, tlsf.AdjustRequestSize(config, 24, 8))
	require.Equal(t, 32, tlsf.AdjustRequestSize(config, 25, 8))
	require.Equal(t, 256, tlsf.AdjustRequestSize(config, 25, 256))
	require.Equal(t, 0, tlsf.AdjustRequestSize(config, 1<<32, 8))
	require.Equal(t, 0, tlsf.AdjustRequestSize(config, 1<<32-1, 8))
	require.Equal(t, 1<<32-8, tlsf.AdjustRequestSize(config, 1<<32-8, 8))
}
