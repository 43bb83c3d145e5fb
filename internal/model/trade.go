package model

// TradeSide marks the aggressor side of a trade.
type TradeSide uint8

const (
	TradeSideUnknown TradeSide = iota
	TradeSideBuy
	TradeSideSell
)

// TradeUpdate is an immutable executed-trade event.
type TradeUpdate struct {
	Exchange string
	Symbol   Symbol
	Price    Price
	Quantity Quantity
	Side     TradeSide
	TsNano   int64
	TradeID  string
}

// snapshotTradeCap bounds the recent-trade ring kept per snapshot.
const snapshotTradeCap = 64

// MarketDataSnapshot bundles a book with the most recent trades for one
// source. Pooled alongside OrderBook.
type MarketDataSnapshot struct {
	Book   *OrderBook
	Trades []TradeUpdate
	next   int
}

// NewMarketDataSnapshot allocates a snapshot with a bounded trade ring.
func NewMarketDataSnapshot() *MarketDataSnapshot {
	return &MarketDataSnapshot{
		Trades: make([]TradeUpdate, 0, snapshotTradeCap),
	}
}

// PushTrade records a trade, overwriting the oldest once the ring is full.
func (s *MarketDataSnapshot) PushTrade(t TradeUpdate) {
	if s == nil {
		return
	}
	if len(s.Trades) < snapshotTradeCap {
		s.Trades = append(s.Trades, t)
		return
	}
	s.Trades[s.next] = t
	s.next = (s.next + 1) % snapshotTradeCap
}

// Reset clears the snapshot for pooled reuse.
func (s *MarketDataSnapshot) Reset() {
	if s == nil {
		return
	}
	s.Book = nil
	s.Trades = s.Trades[:0]
	s.next = 0
}
