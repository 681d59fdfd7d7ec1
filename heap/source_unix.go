//go:build unix

package heap

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/tlsf/memutils"
	"golang.org/x/sys/unix"
)

// MmapSource hands out page-aligned anonymous private mappings. Regions are rounded up to a whole
// number of pages, and Release unmaps them.
type MmapSource struct{}

var _ RegionSource = MmapSource{}

func (s MmapSource) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, cerrors.Newf("cannot map a region of %d bytes", size)
	}

	size = memutils.AlignUp(size, unix.Getpagesize())
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, cerrors.Wrapf(err, "mapping %d bytes", size)
	}

	return region, nil
}

func (s MmapSource) Release(region []byte) error {
	// Acquire may have handed out more than was asked for, so unmap the whole mapping
	err := unix.Munmap(region[:cap(region)])
	if err != nil {
		return cerrors.Wrapf(err, "unmapping %d bytes", cap(region))
	}

	return nil
}

// DefaultSource returns the RegionSource a Heap uses when none is given: anonymous mappings
func DefaultSource() RegionSource {
	return MmapSource{}
}
