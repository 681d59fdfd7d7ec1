package tlsf

// MapInsert exposes the bucket a free block of size belongs in
func MapInsert(config Config, size int) (int, int) {
	g, err := newGeometry(config)
	if err != nil {
		panic(err)
	}

	return g.mapInsert(size)
}

// MapSearch exposes the first bucket searched for a request of size
func MapSearch(config Config, size int) (int, int) {
	g, err := newGeometry(config)
	if err != nil {
		panic(err)
	}

	return g.mapSearch(size)
}

// AdjustRequestSize exposes request size rounding
func AdjustRequestSize(config Config, size int, align int) int {
	g, err := newGeometry(config)
	if err != nil {
		panic(err)
	}

	return g.adjustRequestSize(size, align)
}

// SlotCount exposes the number of slots, including the control region's
func SlotCount(config Config) int {
	g, err := newGeometry(config)
	if err != nil {
		panic(err)
	}

	return g.slotCount
}
