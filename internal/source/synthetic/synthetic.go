// Package synthetic emits a deterministic book/trade feed. It exists for
// local runs and load tests where no exchange connectivity is available:
// same configuration, same output, every run.
package synthetic

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"main/internal/model"
	"main/internal/pool"
	"main/internal/source"
	"main/pkg/exception"
)

// Config shapes the generated feed.
type Config struct {
	Exchange  string
	Symbols   []model.Symbol
	Interval  time.Duration
	BasePrice model.Price
	BaseQty   model.Quantity
	Spread    model.Price
	Depth     int
	// TradeEvery emits one trade per N book snapshots, 0 disables trades.
	TradeEvery int
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = "synthetic"
	}
	if c.Interval <= 0 {
		c.Interval = 100 * time.Millisecond
	}
	if c.BasePrice <= 0 {
		c.BasePrice = 100 * 1e8
	}
	if c.BaseQty <= 0 {
		c.BaseQty = 1e8
	}
	if c.Spread <= 0 {
		c.Spread = 1e6
	}
	if c.Depth <= 0 {
		c.Depth = 10
	}
	return c
}

// Synthetic is a source.Source producing full snapshots on a fixed tick.
type Synthetic struct {
	cfg    Config
	books  *pool.Pool[model.OrderBook]
	events chan source.Event

	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	seq     uint64
	index   int
	ticks   uint64
}

// New builds the generator.
func New(cfg Config, books *pool.Pool[model.OrderBook]) *Synthetic {
	return &Synthetic{
		cfg:    cfg.withDefaults(),
		books:  books,
		events: make(chan source.Event, 1024),
		done:   make(chan struct{}),
	}
}

// ID returns the configured exchange name.
func (s *Synthetic) ID() string {
	return s.cfg.Exchange
}

// Events returns the generator output channel.
func (s *Synthetic) Events() <-chan source.Event {
	return s.events
}

// Start launches the tick loop.
func (s *Synthetic) Start(ctx context.Context) error {
	if len(s.cfg.Symbols) == 0 {
		return exception.ErrConfigNoSymbols
	}
	if !s.started.CompareAndSwap(false, true) {
		return exception.ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(runCtx)
	return nil
}

// Close stops the tick loop.
func (s *Synthetic) Close() error {
	if !s.started.Load() {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	return nil
}

func (s *Synthetic) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	s.emit(source.Event{Kind: source.EventState, Exchange: s.ID(), State: source.StateConnected})
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.emit(source.Event{Kind: source.EventState, Exchange: s.ID(), State: source.StateDisconnected})
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// tick rotates through symbols and drifts the mid price with the sequence
// number so consecutive books differ but remain reproducible.
func (s *Synthetic) tick(now time.Time) {
	symbol := s.cfg.Symbols[s.index]
	s.index = (s.index + 1) % len(s.cfg.Symbols)
	s.seq++
	s.ticks++

	mid := s.cfg.BasePrice + model.Price(s.seq%64)*s.cfg.Spread

	book := s.books.Get()
	book.Exchange = s.ID()
	book.Symbol = symbol
	book.Seq = s.seq
	book.TsNano = now.UnixNano()
	book.Bids = book.Bids[:0]
	book.Asks = book.Asks[:0]
	for i := 0; i < s.cfg.Depth; i++ {
		offset := s.cfg.Spread * model.Price(i+1)
		book.Bids = append(book.Bids, model.PriceLevel{
			Price:    mid - offset,
			Quantity: s.cfg.BaseQty * model.Quantity(i+1),
		})
		book.Asks = append(book.Asks, model.PriceLevel{
			Price:    mid + offset,
			Quantity: s.cfg.BaseQty * model.Quantity(i+1),
		})
	}
	if !s.emit(source.Event{Kind: source.EventSnapshot, Exchange: s.ID(), Book: book}) {
		s.books.Put(book)
	}

	if s.cfg.TradeEvery > 0 && s.ticks%uint64(s.cfg.TradeEvery) == 0 {
		side := model.TradeSideBuy
		if s.seq%2 == 0 {
			side = model.TradeSideSell
		}
		s.emit(source.Event{
			Kind:     source.EventTrade,
			Exchange: s.ID(),
			Trade: model.TradeUpdate{
				Exchange: s.ID(),
				Symbol:   symbol,
				Price:    mid,
				Quantity: s.cfg.BaseQty,
				Side:     side,
				TsNano:   now.UnixNano(),
				TradeID:  strconv.FormatUint(s.seq, 10),
			},
		})
	}
}

// FetchSnapshot regenerates the current book for symbol on demand.
func (s *Synthetic) FetchSnapshot(_ context.Context, symbol model.Symbol) (*model.OrderBook, error) {
	found := false
	for _, candidate := range s.cfg.Symbols {
		if candidate == symbol {
			found = true
			break
		}
	}
	if !found {
		return nil, exception.ErrUnknownSymbol
	}

	mid := s.cfg.BasePrice + model.Price(s.seq%64)*s.cfg.Spread
	book := s.books.Get()
	book.Exchange = s.ID()
	book.Symbol = symbol
	book.Seq = s.seq
	book.TsNano = time.Now().UnixNano()
	book.Bids = book.Bids[:0]
	book.Asks = book.Asks[:0]
	for i := 0; i < s.cfg.Depth; i++ {
		offset := s.cfg.Spread * model.Price(i+1)
		book.Bids = append(book.Bids, model.PriceLevel{Price: mid - offset, Quantity: s.cfg.BaseQty})
		book.Asks = append(book.Asks, model.PriceLevel{Price: mid + offset, Quantity: s.cfg.BaseQty})
	}
	return book, nil
}

func (s *Synthetic) emit(event source.Event) bool {
	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}
