package core

// ring is a fixed-capacity circular buffer that overwrites the oldest
// element when full. Not safe for concurrent use; the owning Session
// serializes access.
type ring[T any] struct {
	buf   []T
	head  int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

// push appends an item, overwriting the oldest if full. Returns true when
// an element was dropped to make room.
func (r *ring[T]) push(item T) bool {
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = item
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
		return true
	}
	r.count++
	return false
}

// drain returns all elements in insertion order and empties the buffer.
func (r *ring[T]) drain() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.head = 0
	r.count = 0
	return out
}

func (r *ring[T]) len() int { return r.count }
