package model

import "testing"

func testBook() *OrderBook {
	return &OrderBook{
		Exchange: "binance",
		Symbol:   NewSymbol("BTC", "USDT"),
		Bids: []PriceLevel{
			{Price: 100_0000_0000, Quantity: 2_0000_0000},
			{Price: 99_0000_0000, Quantity: 1_0000_0000},
		},
		Asks: []PriceLevel{
			{Price: 101_0000_0000, Quantity: 3_0000_0000},
		},
		TsNano: 1700000000000000000,
		Seq:    42,
	}
}

func TestSpreadPct(t *testing.T) {
	b := testBook()
	spread, ok := b.SpreadPct()
	if !ok {
		t.Fatal("expected a spread")
	}
	// (101-100)/100.5*100
	want := 100.0 / 100.5
	if diff := spread - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("spread: got %f want %f", spread, want)
	}

	b.Asks = b.Asks[:0]
	if _, ok := b.SpreadPct(); ok {
		t.Fatal("one-sided book should have no spread")
	}
}

func TestTotalQuantity(t *testing.T) {
	b := testBook()
	if got := b.TotalQuantity(); got != 6_0000_0000 {
		t.Fatalf("total quantity: got %d", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := testBook()
	c := b.Clone()
	c.Bids[0].Quantity = 999
	c.Seq = 1

	if b.Bids[0].Quantity != 2_0000_0000 {
		t.Fatal("clone mutated the original bids")
	}
	if b.Seq != 42 {
		t.Fatal("clone mutated the original seq")
	}
	if c.Exchange != b.Exchange || c.Symbol != b.Symbol || c.TsNano != b.TsNano {
		t.Fatal("clone lost identity fields")
	}
}

func TestResetKeepsCapacity(t *testing.T) {
	b := NewOrderBook(16)
	b.Bids = append(b.Bids, PriceLevel{Price: 1, Quantity: 1})
	b.Exchange = "x"
	b.Reset()
	if b.Exchange != "" || len(b.Bids) != 0 || b.Seq != 0 {
		t.Fatalf("reset incomplete: %+v", b)
	}
	if cap(b.Bids) != 16 {
		t.Fatalf("reset dropped capacity: %d", cap(b.Bids))
	}
}

func TestPushTradeBounded(t *testing.T) {
	s := NewMarketDataSnapshot()
	for i := 0; i < snapshotTradeCap+10; i++ {
		s.PushTrade(TradeUpdate{TsNano: int64(i)})
	}
	if len(s.Trades) != snapshotTradeCap {
		t.Fatalf("trade ring grew past cap: %d", len(s.Trades))
	}
	// oldest entries were overwritten
	found := false
	for i := range s.Trades {
		if s.Trades[i].TsNano == int64(snapshotTradeCap+9) {
			found = true
		}
		if s.Trades[i].TsNano < 10 {
			t.Fatalf("old trade %d survived", s.Trades[i].TsNano)
		}
	}
	if !found {
		t.Fatal("newest trade missing")
	}
}
