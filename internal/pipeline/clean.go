// Package pipeline transforms raw inbound books into validated canonical
// ones: dedupe latest-wins per price, sort bids descending / asks
// ascending, drop zero-quantity and malformed levels, truncate to the
// configured depth, and stamp a per-source monotonic timestamp. The clean
// path is synchronous and allocation-free after warmup.
package pipeline

import (
	"sort"
	"sync/atomic"
	"time"

	"main/internal/model"
	"main/internal/simd"
	"main/pkg/exception"
)

// Config bounds the cleaned book shape.
type Config struct {
	MaxDepth int
}

func (c Config) withDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 64
	}
	return c
}

type bookKey struct {
	exchange string
	symbol   model.Symbol
}

type levelEntry struct {
	price model.Price
	qty   model.Quantity
	idx   int
}

// Cleaner is single-threaded by design: the orchestrator's processing path
// is the only caller, so scratch buffers are reused without locking.
type Cleaner struct {
	cfg      Config
	selector *Selector
	batch    *simd.Engine

	scratch []levelEntry
	prices  []int64
	qtys    []int64

	lastTs  map[bookKey]int64
	nowNano func() int64

	batchesProcessed atomic.Uint64
}

// NewCleaner wires the strategy selector and the batch engine.
func NewCleaner(cfg Config, selector *Selector, batch *simd.Engine) *Cleaner {
	return &Cleaner{
		cfg:      cfg.withDefaults(),
		selector: selector,
		batch:    batch,
		lastTs:   make(map[bookKey]int64),
		nowNano:  func() int64 { return time.Now().UnixNano() },
	}
}

// MaxDepth returns the configured per-side depth bound.
func (c *Cleaner) MaxDepth() int {
	return c.cfg.MaxDepth
}

// BatchesProcessed reports how many sides went through the batch path.
func (c *Cleaner) BatchesProcessed() uint64 {
	if c == nil {
		return 0
	}
	return c.batchesProcessed.Load()
}

// Clean validates and repairs the book in place. Malformed input returns a
// typed validation error and the book must be considered unusable.
func (c *Cleaner) Clean(b *model.OrderBook) error {
	if c == nil || b == nil {
		return exception.ErrNilInstance
	}

	useBatch := c.selector.Current() == StrategyAggressive && c.batch.Enabled()

	b.Bids = c.cleanSide(b.Bids, true, useBatch)
	b.Asks = c.cleanSide(b.Asks, false, useBatch)

	if len(b.Bids) == 0 && len(b.Asks) == 0 {
		return exception.ErrBookEmpty
	}
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if okB && okA && bid.Price >= ask.Price {
		return exception.ErrBookCrossed
	}

	c.stampMonotonic(b)
	return nil
}

// cleanSide applies dedupe, filter, sort and truncation to one side.
// The batch flag only changes which filter implementation runs; the
// result is identical either way.
func (c *Cleaner) cleanSide(levels []model.PriceLevel, descending, useBatch bool) []model.PriceLevel {
	if len(levels) == 0 {
		return levels
	}

	scratch := c.scratch[:0]
	for i := range levels {
		// negative prices and quantities are malformed and never
		// supersede an earlier level
		if levels[i].Price <= 0 || levels[i].Quantity < 0 {
			continue
		}
		scratch = append(scratch, levelEntry{
			price: levels[i].Price,
			qty:   levels[i].Quantity,
			idx:   i,
		})
	}
	c.scratch = scratch

	// group by price keeping arrival order inside each group, then keep
	// the latest entry per price so a trailing zero removes the level
	sort.Slice(scratch, func(i, j int) bool {
		if scratch[i].price != scratch[j].price {
			return scratch[i].price < scratch[j].price
		}
		return scratch[i].idx < scratch[j].idx
	})
	deduped := scratch[:0]
	for i := 0; i < len(scratch); i++ {
		if i+1 < len(scratch) && scratch[i+1].price == scratch[i].price {
			continue
		}
		deduped = append(deduped, scratch[i])
	}

	out := c.filterPositive(deduped, useBatch)

	if descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if len(out) > c.cfg.MaxDepth {
		out = out[:c.cfg.MaxDepth]
	}

	levels = levels[:0]
	for i := range out {
		levels = append(levels, model.PriceLevel{Price: out[i].price, Quantity: out[i].qty})
	}
	return levels
}

// filterPositive drops zero-quantity levels, via the columnar batch engine
// on the aggressive strategy.
func (c *Cleaner) filterPositive(entries []levelEntry, useBatch bool) []levelEntry {
	if !useBatch {
		out := entries[:0]
		for i := range entries {
			if entries[i].qty > 0 {
				out = append(out, entries[i])
			}
		}
		return out
	}

	prices := c.prices[:0]
	qtys := c.qtys[:0]
	for i := range entries {
		prices = append(prices, int64(entries[i].price))
		qtys = append(qtys, int64(entries[i].qty))
	}
	c.prices = prices
	c.qtys = qtys

	kept := c.batch.CompactPositive(prices, qtys)
	c.batchesProcessed.Add(1)

	out := entries[:0]
	for i := 0; i < kept; i++ {
		out = append(out, levelEntry{price: model.Price(prices[i]), qty: model.Quantity(qtys[i])})
	}
	return out
}

// stampMonotonic guarantees strictly increasing timestamps per source.
func (c *Cleaner) stampMonotonic(b *model.OrderBook) {
	key := bookKey{exchange: b.Exchange, symbol: b.Symbol}
	ts := b.TsNano
	if ts == 0 {
		ts = c.nowNano()
	}
	if last := c.lastTs[key]; ts <= last {
		ts = last + 1
	}
	c.lastTs[key] = ts
	b.TsNano = ts
}

// Forget drops per-source state, called when a source is torn down.
func (c *Cleaner) Forget(exchange string) {
	for key := range c.lastTs {
		if key.exchange == exchange {
			delete(c.lastTs, key)
		}
	}
}
