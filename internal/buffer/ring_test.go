package buffer

import "testing"

func TestRingPushPop(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 4; i++ {
		if !r.Push(i) {
			t.Fatalf("push %d on non-full ring failed", i)
		}
	}
	if r.Push(99) {
		t.Fatal("push on full ring should fail")
	}
	if r.Len() != 4 {
		t.Fatalf("len: %d", r.Len())
	}
	for i := 0; i < 4; i++ {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("pop %d: got %d ok=%v", i, v, ok)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatal("pop on empty ring should fail")
	}
}

func TestRingWraps(t *testing.T) {
	r := NewRing[int](4)
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			if !r.Push(round*10 + i) {
				t.Fatalf("push failed at round %d", round)
			}
		}
		for i := 0; i < 3; i++ {
			v, ok := r.Pop()
			if !ok || v != round*10+i {
				t.Fatalf("round %d: got %d ok=%v", round, v, ok)
			}
		}
	}
}

func TestRingCapacityRoundsUp(t *testing.T) {
	r := NewRing[int](5)
	if r.Cap() != 8 {
		t.Fatalf("capacity: %d", r.Cap())
	}
	if occ := r.Occupancy(); occ != 0 {
		t.Fatalf("occupancy of empty ring: %f", occ)
	}
	r.Push(1)
	r.Push(2)
	if occ := r.Occupancy(); occ != 0.25 {
		t.Fatalf("occupancy: %f", occ)
	}
}
