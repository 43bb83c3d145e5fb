package synthetic

import (
	"context"
	"errors"
	"testing"
	"time"

	"main/internal/model"
	"main/internal/pool"
	"main/internal/source"
	"main/pkg/exception"
)

func testSynthetic() (*Synthetic, *pool.Pool[model.OrderBook]) {
	books := pool.Books(16, 16)
	s := New(Config{
		Symbols:    []model.Symbol{model.NewSymbol("BTC", "USDT")},
		Interval:   time.Millisecond,
		Depth:      3,
		TradeEvery: 2,
	}, books)
	return s, books
}

func TestSyntheticEmitsBooksAndTrades(t *testing.T) {
	s, _ := testSynthetic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	deadline := time.After(2 * time.Second)
	var sawBook, sawTrade bool
	for !sawBook || !sawTrade {
		select {
		case ev := <-s.Events():
			switch ev.Kind {
			case source.EventSnapshot:
				sawBook = true
				if ev.Book.Exchange != "synthetic" || len(ev.Book.Bids) != 3 {
					t.Fatalf("book: %+v", ev.Book)
				}
				bid, _ := ev.Book.BestBid()
				ask, _ := ev.Book.BestAsk()
				if bid.Price >= ask.Price {
					t.Fatalf("crossed synthetic book: bid=%d ask=%d", bid.Price, ask.Price)
				}
			case source.EventTrade:
				sawTrade = true
				if ev.Trade.TradeID == "" {
					t.Fatal("trade without id")
				}
			}
		case <-deadline:
			t.Fatalf("timeout: book=%v trade=%v", sawBook, sawTrade)
		}
	}
}

func TestSyntheticStartValidation(t *testing.T) {
	s := New(Config{}, pool.Books(1, 4))
	if err := s.Start(context.Background()); !errors.Is(err, exception.ErrConfigNoSymbols) {
		t.Fatalf("expected no-symbols error, got %v", err)
	}

	s, _ = testSynthetic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()
	if err := s.Start(ctx); !errors.Is(err, exception.ErrAlreadyStarted) {
		t.Fatalf("expected already-started, got %v", err)
	}
}

func TestSyntheticFetchSnapshot(t *testing.T) {
	s, _ := testSynthetic()
	book, err := s.FetchSnapshot(context.Background(), model.NewSymbol("BTC", "USDT"))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(book.Bids) != 3 || len(book.Asks) != 3 {
		t.Fatalf("levels: %d/%d", len(book.Bids), len(book.Asks))
	}

	if _, err := s.FetchSnapshot(context.Background(), model.NewSymbol("DOGE", "USDT")); !errors.Is(err, exception.ErrUnknownSymbol) {
		t.Fatalf("expected unknown symbol, got %v", err)
	}
}

func TestSyntheticCloseStopsStream(t *testing.T) {
	s, _ := testSynthetic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// the event channel closes once the loop drains
	for range s.Events() {
	}
}
