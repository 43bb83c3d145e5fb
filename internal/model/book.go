package model

// PriceLevel is one (price, quantity) entry of an order book side.
type PriceLevel struct {
	Price    Price
	Quantity Quantity
}

// OrderBook is the canonical book for one (exchange, symbol). Instances are
// pooled; the cleaning pipeline mutates them in place and the engine is the
// single writer of the canonical map that owns them.
type OrderBook struct {
	Exchange string
	Symbol   Symbol
	// Bids are strictly descending, Asks strictly ascending after cleaning.
	Bids []PriceLevel
	Asks []PriceLevel
	// TsNano is monotonic per source once the pipeline has stamped it.
	TsNano   int64
	Seq      uint64
	Checksum uint32
}

// NewOrderBook allocates a book with side capacity depthHint.
func NewOrderBook(depthHint int) *OrderBook {
	if depthHint <= 0 {
		depthHint = 64
	}
	return &OrderBook{
		Bids: make([]PriceLevel, 0, depthHint),
		Asks: make([]PriceLevel, 0, depthHint),
	}
}

// Reset clears the book for pooled reuse, keeping side capacity.
func (b *OrderBook) Reset() {
	if b == nil {
		return
	}
	b.Exchange = ""
	b.Symbol = Symbol{}
	b.Bids = b.Bids[:0]
	b.Asks = b.Asks[:0]
	b.TsNano = 0
	b.Seq = 0
	b.Checksum = 0
}

// BestBid returns the top bid level.
func (b *OrderBook) BestBid() (PriceLevel, bool) {
	if b == nil || len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level.
func (b *OrderBook) BestAsk() (PriceLevel, bool) {
	if b == nil || len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// SpreadPct returns (ask-bid)/mid as a percentage, or false when either
// side is empty.
func (b *OrderBook) SpreadPct() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	mid := float64(bid.Price+ask.Price) / 2
	if mid <= 0 {
		return 0, false
	}
	return float64(ask.Price-bid.Price) / mid * 100, true
}

// TotalQuantity sums both sides, used for cross-source volume checks.
func (b *OrderBook) TotalQuantity() Quantity {
	if b == nil {
		return 0
	}
	var total Quantity
	for i := range b.Bids {
		total += b.Bids[i].Quantity
	}
	for i := range b.Asks {
		total += b.Asks[i].Quantity
	}
	return total
}

// CopyInto deep-copies the book into dst, reusing dst's side capacity.
func (b *OrderBook) CopyInto(dst *OrderBook) {
	if b == nil || dst == nil {
		return
	}
	dst.Exchange = b.Exchange
	dst.Symbol = b.Symbol
	dst.Bids = append(dst.Bids[:0], b.Bids...)
	dst.Asks = append(dst.Asks[:0], b.Asks...)
	dst.TsNano = b.TsNano
	dst.Seq = b.Seq
	dst.Checksum = b.Checksum
}

// Clone returns an independent copy.
func (b *OrderBook) Clone() *OrderBook {
	if b == nil {
		return nil
	}
	dst := NewOrderBook(len(b.Bids))
	b.CopyInto(dst)
	return dst
}
