// Package bitscan provides find-first-set and find-last-set over machine words.
//
// Every function returns the 0-based index of the selected bit, or -1 when the input is zero.
// The default build routes FFS, FLS and FLSWide through math/bits, which the compiler lowers to
// the target's bit-scan instructions. Building with the purego tag routes them through the
// portable fallback instead. The Generic* functions are always available and always return
// the same results as the exported fast path.
package bitscan
