package tlsf

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
)

// WordSize is the width in bytes of every value the allocator stores inside managed memory:
// block sizes, free-list links and free-list heads.
type WordSize int

const (
	Word16 WordSize = 2
	Word32 WordSize = 4
	Word64 WordSize = 8
)

var wordSizeMapping = map[WordSize]string{
	Word16: "Word16",
	Word32: "Word32",
	Word64: "Word64",
}

func (w WordSize) String() string {
	return wordSizeMapping[w]
}

const (
	// bitmapBits is the width of the first- and second-level bitmaps
	bitmapBits = 32
	// maxSlots bounds the slot table regardless of how many slot bits the word size leaves
	maxSlots = 1 << 16
)

// Config holds the tuning parameters of an allocator. They are fixed for the lifetime of the
// allocator, but allocators with different configurations may coexist.
type Config struct {
	// WordSize is the width of stored sizes and links
	WordSize WordSize
	// AlignLog2 is log2 of the alignment of every block and payload. The alignment must be at least
	// WordSize and at least 4 bytes, since the two low bits of every size carry flags.
	AlignLog2 uint
	// SLCountLog2 is log2 of the number of linear subdivisions of each power-of-two size range
	SLCountLog2 uint
	// FLMax is log2 of the block size limit. Every block, including a pool's initial block, is
	// strictly smaller than 1 << FLMax.
	FLMax uint
}

// DefaultConfig is a 64-bit configuration: 8-byte words and alignment, 16 subdivisions and
// blocks up to 4GiB.
func DefaultConfig() Config {
	return Config{
		WordSize:    Word64,
		AlignLog2:   3,
		SLCountLog2: 4,
		FLMax:       32,
	}
}

// Config32 is a 32-bit configuration: 4-byte words and alignment, 16 subdivisions and blocks up
// to 16MiB.
func Config32() Config {
	return Config{
		WordSize:    Word32,
		AlignLog2:   2,
		SLCountLog2: 4,
		FLMax:       24,
	}
}

// Config16 is a 16-bit configuration for small embedded heaps: 2-byte words, 4-byte alignment,
// 4 subdivisions and blocks up to 4KiB.
func Config16() Config {
	return Config{
		WordSize:    Word16,
		AlignLog2:   2,
		SLCountLog2: 2,
		FLMax:       12,
	}
}

func (c Config) isZero() bool {
	return c == Config{}
}

// Validate returns an error wrapping ErrInvalidConfig if the configuration cannot be used
func (c Config) Validate() error {
	_, err := newGeometry(c)
	return err
}

// Alignment returns the alignment in bytes of every block and payload
func (c Config) Alignment() int {
	return 1 << c.AlignLog2
}

// MinBlockSize returns the smallest payload a block can have. Smaller requests are rounded up.
func (c Config) MinBlockSize() int {
	return 3 * c.Alignment()
}

// MaxBlockSize returns the exclusive upper bound on block sizes
func (c Config) MaxBlockSize() int {
	return 1 << c.FLMax
}

// PoolOverhead returns the number of bytes of a pool that are never available for payloads: the
// initial block's size word and the trailing sentinel.
func (c Config) PoolOverhead() int {
	return 2 * c.Alignment()
}

// AllocOverhead returns the number of bytes each live allocation costs on top of its payload
func (c Config) AllocOverhead() int {
	return c.Alignment()
}

// PoolSizeFor returns the size of a pool whose initial free block is certain to serve a request
// for size bytes aligned to align, or 0 if no pool can. An align at or below Alignment is a plain
// Malloc.
func (c Config) PoolSizeFor(size int, align int) int {
	g, err := newGeometry(c)
	if err != nil {
		return 0
	}

	if memutils.CheckPow2(align, "alignment") != nil {
		return 0
	}
	if align < g.align {
		align = g.align
	}

	block := g.searchSize(size, align)
	if block == 0 {
		return 0
	}

	block = memutils.AlignUp(g.roundToClass(block), g.align)
	if block >= g.blockSizeMax {
		return 0
	}

	return block + c.PoolOverhead()
}

// ControlSize returns the number of bytes at the start of the memory passed to Create that hold the
// allocator's control structure.
func (c Config) ControlSize() int {
	g, err := newGeometry(c)
	if err != nil {
		return 0
	}

	return g.controlSize
}

// geometry is a validated Config together with every constant derived from it
type geometry struct {
	config Config

	word  int // bytes per stored value
	align int // field stride and block alignment

	slCountLog2 uint
	slCount     int
	flShift     uint
	flCount     int

	smallBlockSize int // sizes below this share first-level class 0
	blockSizeMin   int
	blockSizeMax   int

	offsetBits uint
	slotCount  int

	nullBlock   int // offset of the null block's size word in the control region
	flBitmapOff int
	slBitmapOff int
	tableOff    int
	controlSize int
}

func newGeometry(c Config) (geometry, error) {
	var g geometry

	switch c.WordSize {
	case Word16, Word32, Word64:
	default:
		return g, errors.Wrapf(ErrInvalidConfig, "word size %d is not 2, 4 or 8", c.WordSize)
	}

	if c.AlignLog2 < 2 {
		return g, errors.Wrapf(ErrInvalidConfig, "alignment log2 %d leaves no room for block flags", c.AlignLog2)
	}
	if c.AlignLog2 > 16 {
		return g, errors.Wrapf(ErrInvalidConfig, "alignment log2 %d is too large", c.AlignLog2)
	}
	if 1<<c.AlignLog2 < int(c.WordSize) {
		return g, errors.Wrapf(ErrInvalidConfig, "alignment %d is smaller than word size %d", 1<<c.AlignLog2, c.WordSize)
	}
	if c.SLCountLog2 < 1 || 1<<c.SLCountLog2 > bitmapBits {
		return g, errors.Wrapf(ErrInvalidConfig, "second level count log2 %d must be between 1 and 5", c.SLCountLog2)
	}
	if c.FLMax < c.AlignLog2 {
		return g, errors.Wrapf(ErrInvalidConfig, "max size log2 %d is below alignment log2 %d", c.FLMax, c.AlignLog2)
	}
	if c.FLMax > uint(8*c.WordSize)-2 || c.FLMax > bits.UintSize-2 {
		return g, errors.Wrapf(ErrInvalidConfig, "max size log2 %d does not fit in a %s size field", c.FLMax, c.WordSize)
	}

	g.config = c
	g.word = int(c.WordSize)
	g.align = 1 << c.AlignLog2
	g.slCountLog2 = c.SLCountLog2
	g.slCount = 1 << c.SLCountLog2
	g.flShift = c.SLCountLog2 + c.AlignLog2

	if c.FLMax < g.flShift {
		return g, errors.Wrapf(ErrInvalidConfig, "max size log2 %d is below first level shift %d", c.FLMax, g.flShift)
	}

	g.flCount = int(c.FLMax-g.flShift) + 1
	if g.flCount > bitmapBits {
		return g, errors.Wrapf(ErrInvalidConfig, "first level count %d exceeds %d", g.flCount, bitmapBits)
	}

	g.smallBlockSize = 1 << g.flShift
	g.blockSizeMin = 3 * g.align
	g.blockSizeMax = 1 << c.FLMax
	if g.blockSizeMin >= g.blockSizeMax {
		return g, errors.Wrapf(ErrInvalidConfig, "max size %d leaves no room for a minimum block of %d", g.blockSizeMax, g.blockSizeMin)
	}

	// The null block is laid out like any other header: its unused prev_phys field comes first
	g.nullBlock = g.align
	g.flBitmapOff = 4 * g.align
	g.slBitmapOff = g.flBitmapOff + 4
	g.tableOff = memutils.AlignUp(g.slBitmapOff+4*g.flCount, g.word)
	g.controlSize = memutils.AlignUp(g.tableOff+g.word*g.flCount*g.slCount, g.align)

	// Offsets must cover the control region and the largest pool that AddPool accepts
	largest := g.blockSizeMax + 2*g.align
	if g.controlSize > largest {
		largest = g.controlSize
	}
	g.offsetBits = uint(bits.Len(uint(largest)))

	wordBits := uint(8 * g.word)
	if g.offsetBits+1 > wordBits {
		return g, errors.Wrapf(ErrInvalidConfig, "a %s word cannot address pools of %d bytes", c.WordSize, largest)
	}

	slotBits := wordBits - g.offsetBits
	if slotBits >= 16 {
		g.slotCount = maxSlots
	} else {
		g.slotCount = 1 << slotBits
	}

	return g, nil
}
