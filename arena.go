package tlsf

import (
	"encoding/binary"
	"unsafe"
)

// Ptr is an encoded payload address: the slot of the region that holds the payload in the high
// bits and the payload's byte offset within that region in the low bits. Slot 0 is the
// allocator's control region, so NullPtr never names a payload.
type Ptr uint64

// NullPtr is the zero Ptr. Malloc-style operations return it on failure.
const NullPtr Ptr = 0

// blockRef is an encoded address, like Ptr, of a block's size word. A block's payload begins one
// field after its size word.
type blockRef uint64

const noBlock blockRef = 0

// region is one slot of the allocator's address space
type region struct {
	mem  []byte
	base uintptr
	live bool
}

func addressOf(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
}

func (g *geometry) encode(slot int, offset int) uint64 {
	return uint64(slot)<<g.offsetBits | uint64(offset)
}

func (g *geometry) slotOf(address uint64) int {
	return int(address >> g.offsetBits)
}

func (g *geometry) offsetOf(address uint64) int {
	return int(address & (1<<g.offsetBits - 1))
}

func (g *geometry) toPtr(block blockRef) Ptr {
	return Ptr(uint64(block) + uint64(g.align))
}

func (g *geometry) fromPtr(ptr Ptr) blockRef {
	return blockRef(uint64(ptr) - uint64(g.align))
}

func loadWord(mem []byte, offset int, width int) uint64 {
	switch width {
	case 2:
		return uint64(binary.LittleEndian.Uint16(mem[offset:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(mem[offset:]))
	default:
		return binary.LittleEndian.Uint64(mem[offset:])
	}
}

func storeWord(mem []byte, offset int, width int, value uint64) {
	switch width {
	case 2:
		binary.LittleEndian.PutUint16(mem[offset:], uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(mem[offset:], uint32(value))
	default:
		binary.LittleEndian.PutUint64(mem[offset:], value)
	}
}

// memory returns the region and offset that the field at delta bytes from address lives at.
// Out-of-range fields panic through ordinary slice bounds checks.
func (a *Allocator) memory(address uint64, delta int) ([]byte, int) {
	return a.regions[a.slotOf(address)].mem, a.offsetOf(address) + delta
}

func (a *Allocator) load(address uint64, delta int) uint64 {
	mem, offset := a.memory(address, delta)
	return loadWord(mem, offset, a.word)
}

func (a *Allocator) store(address uint64, delta int, value uint64) {
	mem, offset := a.memory(address, delta)
	storeWord(mem, offset, a.word, value)
}

func (a *Allocator) loadBitmap(offset int) uint32 {
	return binary.LittleEndian.Uint32(a.regions[0].mem[offset:])
}

func (a *Allocator) storeBitmap(offset int, value uint32) {
	binary.LittleEndian.PutUint32(a.regions[0].mem[offset:], value)
}

// realAddress returns the machine address of the byte at ptr, which is what user-requested
// alignments are measured against.
func (a *Allocator) realAddress(ptr Ptr) uintptr {
	return a.regions[a.slotOf(uint64(ptr))].base + uintptr(a.offsetOf(uint64(ptr)))
}
