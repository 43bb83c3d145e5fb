package model

import "testing"

func TestDeltaApply(t *testing.T) {
	book := &OrderBook{
		Bids: []PriceLevel{
			{Price: 100, Quantity: 5},
			{Price: 99, Quantity: 3},
		},
		Asks: []PriceLevel{
			{Price: 101, Quantity: 2},
		},
		TsNano: 10,
		Seq:    5,
	}
	delta := &Delta{
		Bids: []PriceLevel{
			{Price: 100, Quantity: 7}, // replace
			{Price: 99, Quantity: 0},  // remove
			{Price: 98, Quantity: 1},  // add
		},
		Asks: []PriceLevel{
			{Price: 102, Quantity: 0}, // remove of absent level is a no-op
		},
		TsNano: 20,
		Seq:    9,
	}
	delta.Apply(book)

	if len(book.Bids) != 2 {
		t.Fatalf("bid count: %d", len(book.Bids))
	}
	byPrice := map[Price]Quantity{}
	for _, lv := range book.Bids {
		byPrice[lv.Price] = lv.Quantity
	}
	if byPrice[100] != 7 || byPrice[98] != 1 {
		t.Fatalf("bid merge mismatch: %+v", book.Bids)
	}
	if _, ok := byPrice[99]; ok {
		t.Fatal("zero-quantity level should be removed")
	}
	if len(book.Asks) != 1 || book.Asks[0].Price != 101 {
		t.Fatalf("ask merge mismatch: %+v", book.Asks)
	}
	if book.TsNano != 20 || book.Seq != 9 {
		t.Fatalf("ts/seq not advanced: ts=%d seq=%d", book.TsNano, book.Seq)
	}
}

func TestDeltaApplyKeepsNewerStamp(t *testing.T) {
	book := &OrderBook{TsNano: 50, Seq: 100}
	(&Delta{TsNano: 20, Seq: 9}).Apply(book)
	if book.TsNano != 50 || book.Seq != 100 {
		t.Fatalf("older delta rewound book: ts=%d seq=%d", book.TsNano, book.Seq)
	}
}
