package sim

import "testing"

func TestTrailWraparound(t *testing.T) {
	trail := NewTrail[int](3)
	for i := 1; i <= 5; i++ {
		trail.Push(i)
	}
	if trail.Len() != 3 {
		t.Fatalf("expected 3 retained entries, got %d", trail.Len())
	}
	got := trail.Last(10)
	if len(got) != 3 || got[0] != 3 || got[1] != 4 || got[2] != 5 {
		t.Fatalf("unexpected retained entries after wraparound: %v", got)
	}
	tail := trail.Last(2)
	if len(tail) != 2 || tail[0] != 4 || tail[1] != 5 {
		t.Fatalf("expected newest two entries in order, got %v", tail)
	}
}

func TestTrailResetAndEmpty(t *testing.T) {
	trail := NewTrail[string](2)
	if got := trail.Last(5); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	trail.Push("a")
	trail.Push("b")
	trail.Reset()
	if trail.Len() != 0 {
		t.Fatalf("expected reset trail to be empty, got %d", trail.Len())
	}
	trail.Push("c")
	if got := trail.Last(1); len(got) != 1 || got[0] != "c" {
		t.Fatalf("unexpected entries after reset: %v", got)
	}
}

func TestTrailMinimumCapacity(t *testing.T) {
	trail := NewTrail[int](0)
	if trail.Capacity() != 1 {
		t.Fatalf("expected capacity to be clamped to 1, got %d", trail.Capacity())
	}
	trail.Push(1)
	trail.Push(2)
	if got := trail.Last(1); got[0] != 2 {
		t.Fatalf("expected newest entry to survive, got %v", got)
	}
}
