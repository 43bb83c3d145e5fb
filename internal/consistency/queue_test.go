package consistency

import (
	"strconv"
	"testing"

	"main/internal/model"
)

func TestQueueDrainInArrivalOrder(t *testing.T) {
	q := NewQueue(8)
	for i := 0; i < 5; i++ {
		q.Push(model.AnomalyRecord{ID: strconv.Itoa(i)})
	}
	if q.Len() != 5 {
		t.Fatalf("len: %d", q.Len())
	}

	out := q.Drain(nil, 3)
	if len(out) != 3 {
		t.Fatalf("drained %d", len(out))
	}
	for i, rec := range out {
		if rec.ID != strconv.Itoa(i) {
			t.Fatalf("record %d: %s", i, rec.ID)
		}
	}
	out = q.Drain(out[:0], 10)
	if len(out) != 2 || out[0].ID != "3" || out[1].ID != "4" {
		t.Fatalf("second drain: %+v", out)
	}
	if q.Len() != 0 {
		t.Fatalf("len after drain: %d", q.Len())
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(3)
	for i := 0; i < 5; i++ {
		q.Push(model.AnomalyRecord{ID: strconv.Itoa(i)})
	}
	if q.Dropped() != 2 {
		t.Fatalf("dropped: %d", q.Dropped())
	}
	if q.Emitted() != 5 {
		t.Fatalf("emitted: %d", q.Emitted())
	}

	out := q.Drain(nil, 10)
	if len(out) != 3 {
		t.Fatalf("drained %d", len(out))
	}
	// the two oldest records were evicted
	for i, want := range []string{"2", "3", "4"} {
		if out[i].ID != want {
			t.Fatalf("record %d: got %s want %s", i, out[i].ID, want)
		}
	}
}
