package consistency

import (
	"testing"

	"main/internal/model"
)

func newTestEngine(th Thresholds) *Engine {
	e := NewEngine(th)
	e.nowNano = func() int64 { return 1700000000000000000 }
	return e
}

func checkBook(exchange string, bid, ask model.Price, ts int64, seq uint64) *model.OrderBook {
	return &model.OrderBook{
		Exchange: exchange,
		Symbol:   model.NewSymbol("BTC", "USDT"),
		Bids:     []model.PriceLevel{{Price: bid, Quantity: 1_0000_0000}},
		Asks:     []model.PriceLevel{{Price: ask, Quantity: 1_0000_0000}},
		TsNano:   ts,
		Seq:      seq,
	}
}

func kinds(records []model.AnomalyRecord) map[model.AnomalyKind]model.AnomalyRecord {
	out := make(map[model.AnomalyKind]model.AnomalyRecord, len(records))
	for _, rec := range records {
		out[rec.Kind] = rec
	}
	return out
}

func TestInspectCleanBookEmitsNothing(t *testing.T) {
	e := newTestEngine(Thresholds{})
	book := checkBook("binance", 100_0000_0000, 100_5000_0000, 1, 1)
	if records := e.Inspect(nil, book, nil); len(records) != 0 {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestSequenceGapEmitsExactlyOne(t *testing.T) {
	e := newTestEngine(Thresholds{SequenceGap: 1})
	book := checkBook("binance", 100_0000_0000, 100_5000_0000, 1, 10)
	if records := e.Inspect(nil, book, nil); len(records) != 0 {
		t.Fatalf("first book should seed sequence state: %+v", records)
	}

	// a gap of 5 crosses the threshold once
	book.Seq = 15
	records := e.Inspect(nil, book, nil)
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	rec := records[0]
	if rec.Kind != model.AnomalySequenceGap || rec.Value != 5 {
		t.Fatalf("record mismatch: %+v", rec)
	}
	if rec.Severity != model.SeverityCritical {
		t.Fatalf("gap of 5x threshold should be critical: %+v", rec)
	}

	// consecutive sequences are quiet again
	book.Seq = 16
	if records := e.Inspect(nil, book, nil); len(records) != 0 {
		t.Fatalf("consecutive seq flagged: %+v", records)
	}
}

func TestSpreadViolationTiers(t *testing.T) {
	e := newTestEngine(Thresholds{SpreadPctNormal: 1, SpreadPctCritical: 5})

	// ~2% spread: normal severity
	book := checkBook("binance", 99_0000_0000, 101_0000_0000, 1, 0)
	records := e.Inspect(nil, book, nil)
	if len(records) != 1 || records[0].Kind != model.AnomalySpreadViolation {
		t.Fatalf("records: %+v", records)
	}
	if records[0].Severity != model.SeverityNormal {
		t.Fatalf("severity: %+v", records[0])
	}

	// ~10% spread: critical, reported against the critical threshold
	book = checkBook("binance", 95_0000_0000, 105_0000_0000, 1, 0)
	records = e.Inspect(nil, book, nil)
	if len(records) != 1 || records[0].Severity != model.SeverityCritical {
		t.Fatalf("records: %+v", records)
	}
	if records[0].Threshold != 5 {
		t.Fatalf("critical record should carry the critical threshold: %+v", records[0])
	}
}

func TestPriceDiffAgainstPeer(t *testing.T) {
	e := newTestEngine(Thresholds{PriceDiffPct: 1})
	book := checkBook("binance", 100_0000_0000, 100_1000_0000, 1000, 0)
	peer := checkBook("kraken", 102_0000_0000, 102_1000_0000, 1000, 0)

	records := e.Inspect(nil, book, []*model.OrderBook{peer})
	found := kinds(records)
	rec, ok := found[model.AnomalyPriceDiff]
	if !ok {
		t.Fatalf("no price-diff record: %+v", records)
	}
	if len(rec.Sources) != 2 || rec.Sources[0] != "binance" || rec.Sources[1] != "kraken" {
		t.Fatalf("sources: %+v", rec.Sources)
	}
	if rec.Severity != model.SeverityNormal {
		t.Fatalf("~2%% diff should be normal: %+v", rec)
	}

	// a peer on the same exchange is never compared
	if records := e.Inspect(nil, book, []*model.OrderBook{checkBook("binance", 200_0000_0000, 200_1000_0000, 1000, 0)}); len(records) != 0 {
		t.Fatalf("same-exchange peer compared: %+v", records)
	}
}

func TestStalePeerSkipsValueChecks(t *testing.T) {
	e := newTestEngine(Thresholds{PriceDiffPct: 1, TsDiffMs: 1000, MaxTimeDiffMs: 5000})
	book := checkBook("binance", 100_0000_0000, 100_1000_0000, 10_000_000_000_000, 0)
	// peer is 10s older: stale-timestamp fires, price comparison is skipped
	peer := checkBook("kraken", 200_0000_0000, 200_1000_0000, 0, 0)

	records := e.Inspect(nil, book, []*model.OrderBook{peer})
	found := kinds(records)
	if _, ok := found[model.AnomalyStaleTimestamp]; !ok {
		t.Fatalf("no stale-timestamp record: %+v", records)
	}
	if _, ok := found[model.AnomalyPriceDiff]; ok {
		t.Fatalf("stale peer still compared: %+v", records)
	}
}

func TestVolumeMismatch(t *testing.T) {
	e := newTestEngine(Thresholds{VolumeRatio: 10})
	book := checkBook("binance", 100_0000_0000, 100_1000_0000, 1000, 0)
	peer := checkBook("kraken", 100_0000_0000, 100_1000_0000, 1000, 0)
	// same prices, but the peer carries 50x the quantity
	for i := range peer.Bids {
		peer.Bids[i].Quantity *= 50
	}
	for i := range peer.Asks {
		peer.Asks[i].Quantity *= 50
	}

	records := e.Inspect(nil, book, []*model.OrderBook{peer})
	rec, ok := kinds(records)[model.AnomalyVolumeMismatch]
	if !ok {
		t.Fatalf("no volume record: %+v", records)
	}
	if rec.Severity != model.SeverityCritical {
		t.Fatalf("50x ratio should be critical: %+v", rec)
	}
}

func TestForgetClearsSequenceState(t *testing.T) {
	e := newTestEngine(Thresholds{SequenceGap: 1})
	book := checkBook("binance", 100_0000_0000, 100_5000_0000, 1, 10)
	e.Inspect(nil, book, nil)
	e.Forget("binance")

	// after forget, a jump does not count as a gap
	book.Seq = 100
	if records := e.Inspect(nil, book, nil); len(records) != 0 {
		t.Fatalf("forgotten source flagged: %+v", records)
	}
}
