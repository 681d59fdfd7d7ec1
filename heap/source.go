package heap

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
)

//go:generate mockgen -destination mocks/region_source.go -package mocks github.com/vkngwrapper/arsenal/tlsf/heap RegionSource

// RegionSource supplies the memory a Heap grows into. Regions must stay valid and unmoved until
// they are passed back to Release.
type RegionSource interface {
	// Acquire returns a region of at least size bytes. The region's start must be aligned to the
	// heap's configured alignment.
	Acquire(size int) ([]byte, error)
	// Release returns a region obtained from Acquire
	Release(region []byte) error
}

// GoSource hands out regions from the Go heap. Regions are over-allocated and shifted so that they
// start on Alignment, and Release leaves them to the garbage collector.
type GoSource struct {
	Alignment int
}

var _ RegionSource = GoSource{}

func (s GoSource) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, cerrors.Newf("cannot acquire a region of %d bytes", size)
	}

	alignment := s.Alignment
	if alignment == 0 {
		alignment = 1
	}

	if err := memutils.CheckPow2(alignment, "region alignment"); err != nil {
		return nil, err
	}

	buf := make([]byte, size+alignment-1)
	address := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	offset := int(memutils.AlignUp(address, uintptr(alignment)) - address)

	return buf[offset : offset+size : offset+size], nil
}

func (s GoSource) Release(region []byte) error {
	return nil
}
