// Package ring provides a fixed-capacity circular buffer. Capacity is set
// once at construction and every Push past it overwrites the oldest value,
// so the length bound holds structurally rather than by trimming.
//
// A Ring is not safe for concurrent use; owners guard it.
package ring

// Ring holds at most Cap() values of T
type Ring[T any] struct {
	buf   []T
	head  int // next write position
	count int
}

// New creates a ring with the given capacity. Capacity below 1 is raised to 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push stores v as the newest value. It reports whether an older value
// was evicted to make room.
func (r *Ring[T]) Push(v T) (evicted bool) {
	evicted = r.count == len(r.buf)
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if !evicted {
		r.count++
	}
	return evicted
}

// Len returns the number of stored values
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the fixed capacity
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Newest returns up to n values, newest first, in a fresh slice.
// n <= 0 means all of them.
func (r *Ring[T]) Newest(n int) []T {
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		idx := (r.head - 1 - i + len(r.buf)) % len(r.buf)
		out[i] = r.buf[idx]
	}
	return out
}

// Oldest returns every stored value in insertion order, in a fresh slice
func (r *Ring[T]) Oldest() []T {
	out := make([]T, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Clear drops every value
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
}
