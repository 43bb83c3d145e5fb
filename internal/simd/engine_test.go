package simd

import (
	"math/rand"
	"testing"
)

// forced returns an engine with the batch path on regardless of host CPU,
// so the identity checks cover both implementations everywhere.
func forced() *Engine {
	return &Engine{enabled: true, width: laneWidth}
}

func TestCompactPositiveMatchesScalar(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(40)
		prices := make([]int64, n)
		qtys := make([]int64, n)
		for i := 0; i < n; i++ {
			prices[i] = rng.Int63n(10) - 2
			qtys[i] = rng.Int63n(10) - 2
		}

		p1 := append([]int64(nil), prices...)
		q1 := append([]int64(nil), qtys...)
		p2 := append([]int64(nil), prices...)
		q2 := append([]int64(nil), qtys...)

		kept := forced().CompactPositive(p1, q1)
		want := compactPositiveScalar(p2, q2)
		if kept != want {
			t.Fatalf("trial %d: kept %d want %d", trial, kept, want)
		}
		for i := 0; i < kept; i++ {
			if p1[i] != p2[i] || q1[i] != q2[i] {
				t.Fatalf("trial %d: entry %d differs: (%d,%d) vs (%d,%d)",
					trial, i, p1[i], q1[i], p2[i], q2[i])
			}
		}
	}
}

func TestCompactPositiveKeepsOrder(t *testing.T) {
	prices := []int64{1, -1, 2, 3, 0, 4, 5, 6, 7}
	qtys := []int64{1, 1, 0, 3, 1, 4, 5, 6, 7}
	kept := forced().CompactPositive(prices, qtys)
	wantPrices := []int64{1, 3, 4, 5, 6, 7}
	if kept != len(wantPrices) {
		t.Fatalf("kept %d want %d", kept, len(wantPrices))
	}
	for i, want := range wantPrices {
		if prices[i] != want {
			t.Fatalf("entry %d: got %d want %d", i, prices[i], want)
		}
	}
}

func TestMinMax(t *testing.T) {
	for _, e := range []*Engine{forced(), {}} {
		min, max, ok := e.MinMax([]int64{5, -3, 9, 0, 7, 7, 2})
		if !ok || min != -3 || max != 9 {
			t.Fatalf("enabled=%v: min=%d max=%d ok=%v", e.Enabled(), min, max, ok)
		}
		if _, _, ok := e.MinMax(nil); ok {
			t.Fatal("empty input should report not ok")
		}
	}
}

func TestSum(t *testing.T) {
	values := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	for _, e := range []*Engine{forced(), {}} {
		if got := e.Sum(values); got != 45 {
			t.Fatalf("enabled=%v: sum=%d", e.Enabled(), got)
		}
	}
}

func TestDisabledEngineWidth(t *testing.T) {
	var e *Engine
	if e.Enabled() || e.Width() != 0 {
		t.Fatal("nil engine should be disabled")
	}
	if forced().Width() != laneWidth {
		t.Fatalf("width: %d", forced().Width())
	}
}
