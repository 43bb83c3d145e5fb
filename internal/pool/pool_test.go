package pool

import (
	"sync"
	"testing"

	"main/internal/model"
)

func TestPoolReusesAndResets(t *testing.T) {
	p := Books(2, 8)
	b := p.Get()
	b.Exchange = "binance"
	b.Bids = append(b.Bids, model.PriceLevel{Price: 1, Quantity: 1})
	p.Put(b)

	got := p.Get()
	if got.Exchange != "" || len(got.Bids) != 0 {
		t.Fatalf("pooled book not reset: %+v", got)
	}
	if p.FallbackAllocs() != 0 {
		t.Fatalf("unexpected fallback allocs: %d", p.FallbackAllocs())
	}
}

func TestPoolFallbackPastCapacity(t *testing.T) {
	p := Books(2, 8)
	a, b, c := p.Get(), p.Get(), p.Get()
	if a == nil || b == nil || c == nil {
		t.Fatal("get returned nil")
	}
	if p.FallbackAllocs() != 1 {
		t.Fatalf("fallback allocs: %d", p.FallbackAllocs())
	}
	if p.Outstanding() != 3 {
		t.Fatalf("outstanding: %d", p.Outstanding())
	}
	p.Put(a)
	p.Put(b)
	p.Put(c)
	if p.Outstanding() != 0 {
		t.Fatalf("outstanding after put: %d", p.Outstanding())
	}
	// the surplus instance is dropped, the free list stays bounded
	if p.Free() != p.Capacity() {
		t.Fatalf("free=%d capacity=%d", p.Free(), p.Capacity())
	}
}

func TestSnapshotPoolResets(t *testing.T) {
	p := Snapshots(1)
	s := p.Get()
	s.PushTrade(model.TradeUpdate{TradeID: "1"})
	p.Put(s)
	if got := p.Get(); len(got.Trades) != 0 {
		t.Fatalf("pooled snapshot not reset: %d trades", len(got.Trades))
	}
}

func TestPoolConcurrentCheckout(t *testing.T) {
	p := Books(4, 8)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				b := p.Get()
				b.Exchange = "binance"
				p.Put(b)
			}
		}()
	}
	wg.Wait()

	if p.Outstanding() != 0 {
		t.Fatalf("outstanding after churn: %d", p.Outstanding())
	}
	if p.Free() > p.Capacity() {
		t.Fatalf("free=%d capacity=%d", p.Free(), p.Capacity())
	}
}
