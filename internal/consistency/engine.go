// Package consistency cross-checks cleaned books against other sources and
// emits anomaly records. It is strictly observational: nothing here blocks
// or rejects market data.
package consistency

import (
	"time"

	"main/internal/model"
)

// Thresholds configure every check; there are no compiled-in values.
type Thresholds struct {
	PriceDiffPct      float64
	TsDiffMs          int64
	SequenceGap       uint64
	SpreadPctNormal   float64
	SpreadPctCritical float64
	VolumeRatio       float64
	// MaxTimeDiffMs excludes peers whose books are too old to compare.
	MaxTimeDiffMs int64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.PriceDiffPct <= 0 {
		t.PriceDiffPct = 1
	}
	if t.TsDiffMs <= 0 {
		t.TsDiffMs = 5000
	}
	if t.SequenceGap == 0 {
		t.SequenceGap = 1
	}
	if t.SpreadPctNormal <= 0 {
		t.SpreadPctNormal = 1
	}
	if t.SpreadPctCritical <= 0 {
		t.SpreadPctCritical = 5
	}
	if t.VolumeRatio <= 0 {
		t.VolumeRatio = 10
	}
	if t.MaxTimeDiffMs <= 0 {
		t.MaxTimeDiffMs = 30000
	}
	return t
}

type seqKey struct {
	exchange string
	symbol   model.Symbol
}

// Engine evaluates one cleaned book at a time against its peers. It is
// confined to the orchestrator loop, so per-source sequence state needs no
// locking.
type Engine struct {
	th      Thresholds
	lastSeq map[seqKey]uint64
	nowNano func() int64
}

// NewEngine builds an engine with the given thresholds.
func NewEngine(th Thresholds) *Engine {
	return &Engine{
		th:      th.withDefaults(),
		lastSeq: make(map[seqKey]uint64),
		nowNano: func() int64 { return time.Now().UnixNano() },
	}
}

// SetThresholds swaps the configuration, used by hot reload.
func (e *Engine) SetThresholds(th Thresholds) {
	e.th = th.withDefaults()
}

// Thresholds returns the active configuration.
func (e *Engine) Thresholds() Thresholds {
	return e.th
}

// Forget drops per-source sequence state when a source is torn down.
func (e *Engine) Forget(exchange string) {
	for key := range e.lastSeq {
		if key.exchange == exchange {
			delete(e.lastSeq, key)
		}
	}
}

// Inspect runs every check for book against peers (other sources' latest
// books for the same symbol), appending one record per violated check.
func (e *Engine) Inspect(buf []model.AnomalyRecord, book *model.OrderBook, peers []*model.OrderBook) []model.AnomalyRecord {
	if e == nil || book == nil {
		return buf
	}
	now := e.nowNano()

	buf = e.checkSpread(buf, book, now)
	buf = e.checkSequence(buf, book, now)
	for _, peer := range peers {
		if peer == nil || peer.Exchange == book.Exchange || peer.Symbol != book.Symbol {
			continue
		}
		skewMs := (book.TsNano - peer.TsNano) / int64(time.Millisecond)
		if skewMs < 0 {
			skewMs = -skewMs
		}
		if skewMs > e.th.TsDiffMs {
			buf = append(buf, e.record(model.AnomalyStaleTimestamp, book, peer,
				float64(skewMs), float64(e.th.TsDiffMs), now))
		}
		if skewMs > e.th.MaxTimeDiffMs {
			// too stale for the value comparisons below
			continue
		}
		buf = e.checkPriceDiff(buf, book, peer, now)
		buf = e.checkVolume(buf, book, peer, now)
	}
	return buf
}

func (e *Engine) checkSpread(buf []model.AnomalyRecord, book *model.OrderBook, now int64) []model.AnomalyRecord {
	spread, ok := book.SpreadPct()
	if !ok || spread <= e.th.SpreadPctNormal {
		return buf
	}
	rec := e.record(model.AnomalySpreadViolation, book, nil, spread, e.th.SpreadPctNormal, now)
	if spread > e.th.SpreadPctCritical {
		rec.Severity = model.SeverityCritical
		rec.Threshold = e.th.SpreadPctCritical
	}
	return append(buf, rec)
}

func (e *Engine) checkSequence(buf []model.AnomalyRecord, book *model.OrderBook, now int64) []model.AnomalyRecord {
	if book.Seq == 0 {
		return buf
	}
	key := seqKey{exchange: book.Exchange, symbol: book.Symbol}
	last, seen := e.lastSeq[key]
	e.lastSeq[key] = book.Seq
	if !seen || book.Seq <= last {
		return buf
	}
	gap := book.Seq - last
	if gap <= e.th.SequenceGap {
		return buf
	}
	rec := e.record(model.AnomalySequenceGap, book, nil, float64(gap), float64(e.th.SequenceGap), now)
	if gap > 2*e.th.SequenceGap {
		rec.Severity = model.SeverityCritical
	}
	return append(buf, rec)
}

func (e *Engine) checkPriceDiff(buf []model.AnomalyRecord, book, peer *model.OrderBook, now int64) []model.AnomalyRecord {
	a, okA := book.BestBid()
	b, okB := peer.BestBid()
	if !okA || !okB {
		return buf
	}
	diff := float64(a.Price - b.Price)
	if diff < 0 {
		diff = -diff
	}
	mid := float64(a.Price+b.Price) / 2
	if mid <= 0 {
		return buf
	}
	pct := diff / mid * 100
	if pct <= e.th.PriceDiffPct {
		return buf
	}
	rec := e.record(model.AnomalyPriceDiff, book, peer, pct, e.th.PriceDiffPct, now)
	if pct > 2*e.th.PriceDiffPct {
		rec.Severity = model.SeverityCritical
	}
	return append(buf, rec)
}

func (e *Engine) checkVolume(buf []model.AnomalyRecord, book, peer *model.OrderBook, now int64) []model.AnomalyRecord {
	va := float64(book.TotalQuantity())
	vb := float64(peer.TotalQuantity())
	if va <= 0 || vb <= 0 {
		return buf
	}
	ratio := va / vb
	if ratio < 1 {
		ratio = 1 / ratio
	}
	if ratio <= e.th.VolumeRatio {
		return buf
	}
	rec := e.record(model.AnomalyVolumeMismatch, book, peer, ratio, e.th.VolumeRatio, now)
	if ratio > 2*e.th.VolumeRatio {
		rec.Severity = model.SeverityCritical
	}
	return append(buf, rec)
}

func (e *Engine) record(kind model.AnomalyKind, book, peer *model.OrderBook, value, threshold float64, now int64) model.AnomalyRecord {
	sources := []string{book.Exchange}
	if peer != nil {
		sources = append(sources, peer.Exchange)
	}
	return model.AnomalyRecord{
		ID:        model.NewAnomalyID(),
		Symbol:    book.Symbol,
		Kind:      kind,
		Severity:  model.SeverityNormal,
		Sources:   sources,
		Value:     value,
		Threshold: threshold,
		TsNano:    now,
	}
}
