package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"main/internal/cache"
	"main/internal/model"
	"main/internal/pool"
	"main/internal/recorder"
)

func stateBook(exchange string, symbol model.Symbol, ts int64, seq uint64) *model.OrderBook {
	return &model.OrderBook{
		Exchange: exchange,
		Symbol:   symbol,
		Bids:     []model.PriceLevel{{Price: 100_0000_0000, Quantity: 1_0000_0000}},
		Asks:     []model.PriceLevel{{Price: 101_0000_0000, Quantity: 2_0000_0000}},
		TsNano:   ts,
		Seq:      seq,
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.mds")
	btc := model.NewSymbol("BTC", "USDT")
	eth := model.NewSymbol("ETH", "USDT")
	in := map[cache.Key]*model.OrderBook{
		{Exchange: "binance", Symbol: btc}: stateBook("binance", btc, 100, 1),
		{Exchange: "kraken", Symbol: eth}:  stateBook("kraken", eth, 200, 2),
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	books := pool.Books(8, 8)
	out, err := ReadSnapshot(path, books)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("books: %d", len(out))
	}
	byKey := map[cache.Key]*model.OrderBook{}
	for _, book := range out {
		byKey[cache.Key{Exchange: book.Exchange, Symbol: book.Symbol}] = book
	}
	got := byKey[cache.Key{Exchange: "binance", Symbol: btc}]
	if got == nil || got.TsNano != 100 || got.Seq != 1 {
		t.Fatalf("binance book: %+v", got)
	}
}

func TestReadSnapshotRejectsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.mds")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path, pool.Books(2, 4)); err == nil {
		t.Fatal("corrupt snapshot should fail")
	}
}

func TestRecoverColdStart(t *testing.T) {
	dir := t.TempDir()
	result, err := Recover(context.Background(), RecoverConfig{
		SnapshotPath: filepath.Join(dir, "missing.mds"),
		JournalDir:   filepath.Join(dir, "missing-journal"),
	}, pool.Books(2, 4))
	if err != nil {
		t.Fatalf("cold start: %v", err)
	}
	if len(result.Books) != 0 || result.FromJournal != 0 {
		t.Fatalf("cold start not empty: %+v", result)
	}
}

func TestRecoverJournalSupersedesSnapshot(t *testing.T) {
	dir := t.TempDir()
	snapshotPath := filepath.Join(dir, "books.mds")
	journalDir := filepath.Join(dir, "journal")
	btc := model.NewSymbol("BTC", "USDT")
	eth := model.NewSymbol("ETH", "USDT")

	// snapshot holds BTC at ts 100 and ETH at ts 500
	err := WriteSnapshot(snapshotPath, map[cache.Key]*model.OrderBook{
		{Exchange: "binance", Symbol: btc}: stateBook("binance", btc, 100, 1),
		{Exchange: "binance", Symbol: eth}: stateBook("binance", eth, 500, 1),
	})
	if err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	// the journal has a newer BTC and an older ETH
	w, err := recorder.NewWriter(recorder.Config{Dir: journalDir})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	ctx := context.Background()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := w.Start(runCtx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.TryAppendBook(stateBook("binance", btc, 900, 9)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.TryAppendBook(stateBook("binance", eth, 200, 2)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	books := pool.Books(8, 8)
	result, err := Recover(ctx, RecoverConfig{
		SnapshotPath: snapshotPath,
		JournalDir:   journalDir,
	}, books)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(result.Books) != 2 {
		t.Fatalf("books: %d", len(result.Books))
	}
	if result.FromJournal != 1 {
		t.Fatalf("journal count: %d", result.FromJournal)
	}

	btcBook := result.Books[cache.Key{Exchange: "binance", Symbol: btc}]
	if btcBook == nil || btcBook.TsNano != 900 {
		t.Fatalf("journal should supersede snapshot: %+v", btcBook)
	}
	ethBook := result.Books[cache.Key{Exchange: "binance", Symbol: eth}]
	if ethBook == nil || ethBook.TsNano != 500 {
		t.Fatalf("older journal entry should not supersede: %+v", ethBook)
	}
}
