package pool

import "main/internal/model"

// Books builds the shared OrderBook pool with the given side depth.
func Books(capacity, depth int) *Pool[model.OrderBook] {
	return New(capacity,
		func() *model.OrderBook { return model.NewOrderBook(depth) },
		func(b *model.OrderBook) { b.Reset() },
	)
}

// Snapshots builds the shared MarketDataSnapshot pool.
func Snapshots(capacity int) *Pool[model.MarketDataSnapshot] {
	return New(capacity,
		func() *model.MarketDataSnapshot { return model.NewMarketDataSnapshot() },
		func(s *model.MarketDataSnapshot) { s.Reset() },
	)
}
