package sim

// Trail keeps the most recent entries in a fixed-size ring, overwriting the
// oldest entry once full. It is not safe for concurrent use; the owning lobby
// serialises access.
type Trail[T any] struct {
	data  []T
	head  int
	count int
}

// NewTrail constructs a ring retaining at most capacity entries.
func NewTrail[T any](capacity int) *Trail[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Trail[T]{data: make([]T, capacity)}
}

// Capacity reports the maximum number of retained entries.
func (t *Trail[T]) Capacity() int {
	if t == nil {
		return 0
	}
	return len(t.data)
}

// Len reports the number of retained entries.
func (t *Trail[T]) Len() int {
	if t == nil {
		return 0
	}
	return t.count
}

// Push appends an entry, evicting the oldest when the ring is full.
func (t *Trail[T]) Push(entry T) {
	if t == nil {
		return
	}
	tail := (t.head + t.count) % len(t.data)
	t.data[tail] = entry
	if t.count == len(t.data) {
		t.head = (t.head + 1) % len(t.data)
		return
	}
	t.count++
}

// Last returns up to n of the newest entries in insertion order.
func (t *Trail[T]) Last(n int) []T {
	if t == nil || n <= 0 || t.count == 0 {
		return []T{}
	}
	if n > t.count {
		n = t.count
	}
	out := make([]T, n)
	start := t.count - n
	for i := 0; i < n; i++ {
		out[i] = t.data[(t.head+start+i)%len(t.data)]
	}
	return out
}

// Reset drops every retained entry.
func (t *Trail[T]) Reset() {
	if t == nil {
		return
	}
	var zero T
	for i := range t.data {
		t.data[i] = zero
	}
	t.head = 0
	t.count = 0
}
