package trailhead

// idAllocator hands out strictly increasing element ids. It is seeded from
// the highest id already on disk, so reopened databases never reuse an id.
// Ids burned by a rolled-back transaction leave gaps, which the reader
// tolerates. Callers hold the session mutex.
type idAllocator struct {
	last int64
}

func newIDAllocator(seed int64) *idAllocator {
	return &idAllocator{last: seed}
}

func (a *idAllocator) Next() int64 {
	a.last++
	return a.last
}
