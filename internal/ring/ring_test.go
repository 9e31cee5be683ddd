package ring

import (
	"reflect"
	"testing"
)

func TestPushWithinCapacity(t *testing.T) {
	r := New[int](3)
	if r.Push(1) || r.Push(2) {
		t.Fatal("no eviction expected below capacity")
	}
	if r.Len() != 2 {
		t.Fatalf("expected len 2, got %d", r.Len())
	}
	if got := r.Newest(0); !reflect.DeepEqual(got, []int{2, 1}) {
		t.Errorf("expected [2 1], got %v", got)
	}
	if got := r.Oldest(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("expected [1 2], got %v", got)
	}
}

func TestPushEvictsOldest(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 3; i++ {
		r.Push(i)
	}
	if !r.Push(4) {
		t.Fatal("expected eviction at capacity")
	}
	if r.Len() != 3 {
		t.Fatalf("expected len 3, got %d", r.Len())
	}
	if got := r.Newest(0); !reflect.DeepEqual(got, []int{4, 3, 2}) {
		t.Errorf("expected [4 3 2], got %v", got)
	}
	if got := r.Oldest(); !reflect.DeepEqual(got, []int{2, 3, 4}) {
		t.Errorf("expected [2 3 4], got %v", got)
	}
}

func TestNewestLimit(t *testing.T) {
	r := New[string](5)
	for _, s := range []string{"a", "b", "c", "d"} {
		r.Push(s)
	}
	if got := r.Newest(2); !reflect.DeepEqual(got, []string{"d", "c"}) {
		t.Errorf("expected [d c], got %v", got)
	}
	if got := r.Newest(10); len(got) != 4 {
		t.Errorf("expected 4 values, got %d", len(got))
	}
}

func TestNewestReturnsFreshSlice(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	a := r.Newest(0)
	a[0] = 99
	if got := r.Newest(0); got[0] != 1 {
		t.Errorf("ring mutated through snapshot: %v", got)
	}
}

func TestClear(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	r.Push(2)
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected empty ring, got %d", r.Len())
	}
	r.Push(3)
	if got := r.Newest(0); !reflect.DeepEqual(got, []int{3}) {
		t.Errorf("expected [3], got %v", got)
	}
}

func TestZeroCapacityRaised(t *testing.T) {
	r := New[int](0)
	if r.Cap() != 1 {
		t.Fatalf("expected cap 1, got %d", r.Cap())
	}
	r.Push(1)
	r.Push(2)
	if got := r.Newest(0); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("expected [2], got %v", got)
	}
}
