package engine

import (
	"time"

	"main/internal/model"
	"main/internal/pool"
	"main/internal/source"
	"main/internal/source/binance"
	"main/internal/source/synthetic"
)

// DefaultFactory maps an exchange name onto its adapter. The "synthetic"
// exchange gets the deterministic generator; everything else speaks the
// Binance stream protocol, which the compatible venues expose as well.
func DefaultFactory(cfg source.Config, books *pool.Pool[model.OrderBook]) (source.Source, error) {
	if cfg.Exchange == "synthetic" {
		return synthetic.New(synthetic.Config{
			Exchange:   cfg.Exchange,
			Symbols:    cfg.Symbols,
			Interval:   100 * time.Millisecond,
			TradeEvery: 4,
		}, books), nil
	}
	return binance.New(cfg, books), nil
}
