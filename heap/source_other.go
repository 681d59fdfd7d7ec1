//go:build !unix

package heap

// DefaultSource returns the RegionSource a Heap uses when none is given: page-aligned slices of
// the Go heap
func DefaultSource() RegionSource {
	return GoSource{Alignment: 4096}
}
