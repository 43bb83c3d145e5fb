// Package engine is the central orchestrator: it owns the canonical book
// map, runs the prioritized processing loop (shutdown before commands
// before data), and coordinates sources, pipeline, cache, consistency and
// journal. The loop goroutine is the single writer of all canonical state.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/cache"
	"main/internal/consistency"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/pipeline"
	"main/internal/pool"
	"main/internal/recorder"
	"main/internal/source"
	"main/pkg/exception"
)

// Factory builds a source adapter from its configuration.
type Factory func(cfg source.Config, books *pool.Pool[model.OrderBook]) (source.Source, error)

// Config sizes the orchestrator.
type Config struct {
	Sources     []source.Config
	BusSize     int
	SampleEvery time.Duration
}

func (c Config) withDefaults() Config {
	if c.BusSize <= 0 {
		c.BusSize = 8192
	}
	if c.SampleEvery <= 0 {
		c.SampleEvery = time.Second
	}
	return c
}

// Deps are the collaborating components, built once in main.
type Deps struct {
	Factory   Factory
	Books     *pool.Pool[model.OrderBook]
	Snapshots *pool.Pool[model.MarketDataSnapshot]
	Cleaner   *pipeline.Cleaner
	Selector  *pipeline.Selector
	Checker   *consistency.Engine
	Anomalies *consistency.Queue
	// ArchiveQueue receives a second copy of every anomaly when the
	// database archive runs alongside the stream publisher.
	ArchiveQueue *consistency.Queue
	Cache     *cache.Tiered
	Journal   *recorder.Writer // optional
	Metrics   *obs.Metrics
	// Recovered seeds the canonical map on startup; ownership transfers
	// to the engine.
	Recovered map[cache.Key]*model.OrderBook
}

type runningSource struct {
	cfg      source.Config
	src      source.Source
	cancel   context.CancelFunc
	pumpDone chan struct{}
}

// Engine is the orchestrator. Create with New, drive with Run, talk to it
// through Client.
type Engine struct {
	cfg  Config
	deps Deps
	bus  *bus.Queue

	// canonical is written only by the loop goroutine; sync.Map lets
	// StatsSnapshot and tests read it without coordination.
	canonical sync.Map // cache.Key -> *model.OrderBook
	bookCount atomic.Int64

	// loop-owned state, never touched outside the loop goroutine
	trades     map[cache.Key]*model.MarketDataSnapshot
	running    map[string]*runningSource
	configs    map[string]source.Config
	anomalyBuf []model.AnomalyRecord
	runCtx     context.Context

	// strategy sampling, loop-owned
	windowEvents int
	lastSample   time.Time
	depthEWMA    float64
	volEWMA      float64
	lastMid      map[cache.Key]float64

	cmds      chan request
	done      chan struct{}
	ready     atomic.Bool
	started   atomic.Bool
	startNano atomic.Int64
}

// New assembles the engine. Sources are not started until Run processes a
// StartCollectors command.
func New(cfg Config, deps Deps) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:     cfg,
		deps:    deps,
		bus:     bus.NewQueue(cfg.BusSize),
		trades:  make(map[cache.Key]*model.MarketDataSnapshot),
		running: make(map[string]*runningSource),
		configs: make(map[string]source.Config, len(cfg.Sources)),
		lastMid: make(map[cache.Key]float64),
		cmds:    make(chan request, 64),
		done:    make(chan struct{}),
	}
	for _, src := range cfg.Sources {
		e.configs[src.Exchange] = src
	}
	for key, book := range deps.Recovered {
		e.canonical.Store(key, book)
		e.bookCount.Add(1)
	}
	return e
}

// Ready reports whether at least one data event has been processed.
func (e *Engine) Ready() bool {
	return e != nil && e.ready.Load()
}

// Run drives the processing loop until ctx is done. Shutdown beats
// pending commands, commands beat data.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return exception.ErrAlreadyStarted
	}
	e.startNano.Store(time.Now().UnixNano())
	e.runCtx = ctx
	e.lastSample = time.Now()
	defer close(e.done)
	defer e.shutdown()

	sampleTicker := time.NewTicker(e.cfg.SampleEvery)
	defer sampleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		select {
		case req := <-e.cmds:
			e.handle(req)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-e.cmds:
			e.handle(req)
		case ev, ok := <-e.bus.C():
			if !ok {
				return nil
			}
			e.handleEvent(ev)
			e.drainBatch()
		case <-sampleTicker.C:
			e.observeLoad()
		}
	}
}

// drainBatch processes up to the strategy's batch size in one loop pass,
// minus the event already handled.
func (e *Engine) drainBatch() {
	for n := e.deps.Selector.Current().BatchSize() - 1; n > 0; n-- {
		select {
		case ev, ok := <-e.bus.C():
			if !ok {
				return
			}
			e.handleEvent(ev)
		default:
			return
		}
	}
}

func (e *Engine) handleEvent(ev source.Event) {
	if _, ok := e.running[ev.Exchange]; !ok {
		// events still queued on the bus when their source was torn
		// down must not re-install the evicted state
		if ev.Book != nil {
			e.deps.Books.Put(ev.Book)
		}
		e.deps.Metrics.IncDropped()
		return
	}
	e.deps.Metrics.ObserveEvent(ev.Kind)
	switch ev.Kind {
	case source.EventSnapshot:
		e.handleBook(ev.Book, true)
	case source.EventDelta:
		e.handleDelta(ev.Delta)
	case source.EventTrade:
		e.handleTrade(ev.Trade)
	case source.EventState:
		logs.Infof("source %s %s", ev.Exchange, ev.State)
	case source.EventErr:
		e.deps.Metrics.IncSourceError()
		logs.Errorf("source %s, err: %+v", ev.Exchange, ev.Err)
	}
}

// handleBook cleans a full snapshot and commits it as the new canonical
// book. The engine owns book from here on.
func (e *Engine) handleBook(book *model.OrderBook, fresh bool) {
	if book == nil {
		return
	}
	key := cache.Key{Exchange: book.Exchange, Symbol: book.Symbol}

	start := time.Now()
	err := e.deps.Cleaner.Clean(book)
	elapsed := time.Since(start)
	e.deps.Metrics.ObserveClean(elapsed)
	e.deps.Selector.RecordLatency(elapsed)

	if err != nil {
		e.deps.Metrics.IncValidationError()
		if fresh {
			e.deps.Books.Put(book)
		} else {
			// an in-place canonical book that no longer validates is
			// dropped entirely
			e.evictKey(key, book)
		}
		return
	}

	e.commit(key, book, fresh)
}

// handleDelta merges an incremental update into the canonical book and
// re-validates it.
func (e *Engine) handleDelta(delta *model.Delta) {
	if delta == nil {
		return
	}
	key := cache.Key{Exchange: delta.Exchange, Symbol: delta.Symbol}
	v, ok := e.canonical.Load(key)
	if !ok {
		// no base book yet, the adapter's next snapshot will seed one
		return
	}
	book := v.(*model.OrderBook)
	delta.Apply(book)
	e.handleBook(book, false)
}

func (e *Engine) handleTrade(trade model.TradeUpdate) {
	key := cache.Key{Exchange: trade.Exchange, Symbol: trade.Symbol}
	snap, ok := e.trades[key]
	if !ok {
		snap = e.deps.Snapshots.Get()
		e.trades[key] = snap
	}
	snap.PushTrade(trade)
	e.ready.Store(true)
}

// commit installs book as canonical, mirrors it into the cache, journals
// it and runs the consistency checks against peer books.
func (e *Engine) commit(key cache.Key, book *model.OrderBook, fresh bool) {
	if fresh {
		if prev, ok := e.canonical.Load(key); ok {
			e.deps.Books.Put(prev.(*model.OrderBook))
		} else {
			e.bookCount.Add(1)
		}
		e.canonical.Store(key, book)
	}

	mirror := e.deps.Books.Get()
	book.CopyInto(mirror)
	if err := e.deps.Cache.Put(key, mirror); err != nil {
		logs.Errorf("cache put %s, err: %+v", key.String(), err)
	}

	if e.deps.Journal != nil {
		if err := e.deps.Journal.TryAppendBook(book); err != nil &&
			!errors.Is(err, recorder.ErrQueueFull) {
			logs.Errorf("journal append %s, err: %+v", key.String(), err)
		}
	}

	e.inspect(book)
	e.observeBook(key, book)
	e.ready.Store(true)
}

func (e *Engine) inspect(book *model.OrderBook) {
	peers := make([]*model.OrderBook, 0, 4)
	e.canonical.Range(func(_, v any) bool {
		peer := v.(*model.OrderBook)
		if peer.Symbol == book.Symbol && peer.Exchange != book.Exchange {
			peers = append(peers, peer)
		}
		return true
	})

	start := time.Now()
	e.anomalyBuf = e.deps.Checker.Inspect(e.anomalyBuf[:0], book, peers)
	e.deps.Metrics.ObserveInspect(time.Since(start))
	for i := range e.anomalyBuf {
		e.deps.Anomalies.Push(e.anomalyBuf[i])
		if e.deps.ArchiveQueue != nil {
			e.deps.ArchiveQueue.Push(e.anomalyBuf[i])
		}
	}
}

// observeBook feeds the strategy selector's complexity inputs.
func (e *Engine) observeBook(key cache.Key, book *model.OrderBook) {
	const alpha = 0.05
	e.windowEvents++

	depth := float64(len(book.Bids) + len(book.Asks))
	if e.depthEWMA == 0 {
		e.depthEWMA = depth
	} else {
		e.depthEWMA = alpha*depth + (1-alpha)*e.depthEWMA
	}

	bid, okB := book.BestBid()
	ask, okA := book.BestAsk()
	if !okB || !okA {
		return
	}
	mid := float64(bid.Price+ask.Price) / 2
	if last := e.lastMid[key]; last > 0 && mid > 0 {
		move := (mid - last) / last * 100
		if move < 0 {
			move = -move
		}
		e.volEWMA = alpha*move + (1-alpha)*e.volEWMA
	}
	e.lastMid[key] = mid
}

func (e *Engine) observeLoad() {
	now := time.Now()
	elapsed := now.Sub(e.lastSample).Seconds()
	if elapsed <= 0 {
		return
	}
	freq := float64(e.windowEvents) / elapsed
	e.windowEvents = 0
	e.lastSample = now

	e.deps.Selector.Observe(pipeline.Sample{
		Depth:      int(e.depthEWMA),
		UpdateFreq: freq,
		Volatility: e.volEWMA,
		Load:       float64(e.bus.Len()) / float64(e.bus.Cap()),
	})
}

func (e *Engine) handle(req request) {
	start := time.Now()
	defer func() { e.deps.Metrics.ObserveCommand(time.Since(start)) }()

	switch req.kind {
	case reqGetOrderBook:
		req.resp <- e.getOrderBook(req.exchange, req.symbol)
	case reqGetAllOrderBooks:
		req.resp <- e.getAllOrderBooks()
	case reqGetStats:
		req.resp <- response{stats: e.StatsSnapshot()}
	case reqReconfigure:
		req.resp <- response{err: e.reconfigure(req.configs)}
	case reqStartCollectors:
		req.resp <- response{err: e.startCollectors()}
	default:
		req.resp <- response{err: exception.ErrCommandChannelClosed}
	}
}

func (e *Engine) getOrderBook(exchange string, symbol model.Symbol) response {
	if !e.ready.Load() {
		return response{err: exception.ErrEngineNotReady}
	}
	key := cache.Key{Exchange: strings.ToLower(exchange), Symbol: symbol}
	if v, ok := e.canonical.Load(key); ok {
		return response{book: v.(*model.OrderBook).Clone()}
	}
	book, err := e.deps.Cache.Get(key)
	if err != nil {
		if errors.Is(err, exception.ErrCacheMiss) {
			return response{err: exception.ErrBookNotFound}
		}
		return response{err: err}
	}
	return response{book: book}
}

func (e *Engine) getAllOrderBooks() response {
	if !e.ready.Load() {
		return response{err: exception.ErrEngineNotReady}
	}
	var books []*model.OrderBook
	e.canonical.Range(func(_, v any) bool {
		books = append(books, v.(*model.OrderBook).Clone())
		return true
	})
	return response{books: books}
}

// StatsSnapshot assembles the performance view. Everything it reads is
// safe to touch concurrently, so the metrics exporter calls it directly.
func (e *Engine) StatsSnapshot() model.PerformanceStats {
	m := e.deps.Metrics.Snapshot()
	cacheStats := e.deps.Cache.Stats()
	var uptime time.Duration
	if start := e.startNano.Load(); start > 0 {
		uptime = time.Duration(time.Now().UnixNano() - start)
	}
	return model.PerformanceStats{
		ActiveBooks:        int(e.bookCount.Load()),
		EventsProcessed:    m.EventsProcessed,
		EventsDropped:      m.EventsDropped + e.bus.Dropped(),
		ValidationErrors:   m.ValidationErrors,
		BatchesProcessed:   e.deps.Cleaner.BatchesProcessed(),
		AnomaliesEmitted:   e.deps.Anomalies.Emitted(),
		CacheHitRate:       cacheStats.HitRate(),
		RingOccupancy:      float64(e.bus.Len()) / float64(e.bus.Cap()),
		PoolFallbackAllocs: e.deps.Books.FallbackAllocs(),
		CleanLatencyAvg:    m.CleanLatency.Avg,
		CleanLatencyMax:    m.CleanLatency.Max,
		Uptime:             uptime,
	}
}

// ExportBooks hands the canonical map to the caller for persistence.
// Only valid after Run has returned.
func (e *Engine) ExportBooks() map[cache.Key]*model.OrderBook {
	out := make(map[cache.Key]*model.OrderBook)
	e.canonical.Range(func(k, v any) bool {
		out[k.(cache.Key)] = v.(*model.OrderBook)
		return true
	})
	return out
}

func (e *Engine) startCollectors() error {
	startedAny := false
	for name, cfg := range e.configs {
		if !cfg.Enabled {
			continue
		}
		if _, running := e.running[name]; running {
			continue
		}
		if err := e.startSource(cfg); err != nil {
			return err
		}
		startedAny = true
	}
	if !startedAny && len(e.running) > 0 {
		return exception.ErrAlreadyStarted
	}
	return nil
}

func (e *Engine) startSource(cfg source.Config) error {
	src, err := e.deps.Factory(cfg, e.deps.Books)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(e.runCtx)
	if err := src.Start(ctx); err != nil {
		cancel()
		return err
	}
	rs := &runningSource{
		cfg:      cfg,
		src:      src,
		cancel:   cancel,
		pumpDone: make(chan struct{}),
	}
	e.running[cfg.Exchange] = rs
	go e.pump(rs)
	logs.Infof("source %s started, symbols: %d", cfg.Exchange, len(cfg.Symbols))
	return nil
}

// pump forwards adapter events onto the bus without ever blocking the
// adapter. Drops release pooled books back immediately.
func (e *Engine) pump(rs *runningSource) {
	defer close(rs.pumpDone)
	for ev := range rs.src.Events() {
		if err := e.bus.TryPublish(ev); err != nil {
			e.deps.Metrics.IncDropped()
			if ev.Book != nil {
				e.deps.Books.Put(ev.Book)
			}
		}
	}
}

// reconfigure diffs the new source set against the running one. The set
// is validated up front; any rejection leaves everything running as-is.
func (e *Engine) reconfigure(configs []source.Config) error {
	if err := validateConfigs(configs); err != nil {
		return err
	}

	next := make(map[string]source.Config, len(configs))
	for _, cfg := range configs {
		next[cfg.Exchange] = cfg
	}

	for name, old := range e.configs {
		cfg, keep := next[name]
		if keep && cfg.Enabled && old.Equal(cfg) {
			continue
		}
		e.teardown(name)
	}
	for name, cfg := range next {
		if !cfg.Enabled {
			continue
		}
		if _, running := e.running[name]; running {
			continue
		}
		if err := e.startSource(cfg); err != nil {
			logs.Errorf("start source %s, err: %+v", name, err)
		}
	}
	e.configs = next
	return nil
}

func validateConfigs(configs []source.Config) error {
	if len(configs) == 0 {
		return exception.ErrConfigEmptySources
	}
	seen := make(map[string]struct{}, len(configs))
	for _, cfg := range configs {
		if _, dup := seen[cfg.Exchange]; dup {
			return exception.ErrConfigDuplicateSource
		}
		seen[cfg.Exchange] = struct{}{}
		if !cfg.Enabled {
			continue
		}
		if len(cfg.Symbols) == 0 {
			return exception.ErrConfigNoSymbols
		}
		if cfg.Exchange != "synthetic" && (cfg.WSURL == "" || cfg.RESTURL == "") {
			return exception.ErrConfigMissingEndpoint
		}
	}
	return nil
}

// teardown stops one source and evicts every trace of it: canonical
// books, trade rings, cache entries and pipeline state.
func (e *Engine) teardown(name string) {
	if rs, ok := e.running[name]; ok {
		rs.cancel()
		if err := rs.src.Close(); err != nil {
			logs.Errorf("close source %s, err: %+v", name, err)
		}
		<-rs.pumpDone
		delete(e.running, name)
	}

	e.canonical.Range(func(k, v any) bool {
		key := k.(cache.Key)
		if key.Exchange == name {
			e.evictKey(key, v.(*model.OrderBook))
		}
		return true
	})
	for key, snap := range e.trades {
		if key.Exchange == name {
			e.deps.Snapshots.Put(snap)
			delete(e.trades, key)
		}
	}
	if err := e.deps.Cache.InvalidateExchange(name); err != nil {
		logs.Errorf("invalidate cache %s, err: %+v", name, err)
	}
	e.deps.Cleaner.Forget(name)
	e.deps.Checker.Forget(name)
	for key := range e.lastMid {
		if key.Exchange == name {
			delete(e.lastMid, key)
		}
	}
	logs.Infof("source %s torn down", name)
}

func (e *Engine) evictKey(key cache.Key, book *model.OrderBook) {
	e.canonical.Delete(key)
	e.bookCount.Add(-1)
	e.deps.Books.Put(book)
}

// shutdown stops all sources and rejects queued commands with closed
// response semantics (callers observe done).
func (e *Engine) shutdown() {
	for name := range e.running {
		e.teardownSourceOnly(name)
	}
	e.bus.Close()
}

// teardownSourceOnly stops the source but keeps canonical state, so a
// final snapshot can persist it.
func (e *Engine) teardownSourceOnly(name string) {
	rs, ok := e.running[name]
	if !ok {
		return
	}
	rs.cancel()
	if err := rs.src.Close(); err != nil {
		logs.Errorf("close source %s, err: %+v", name, err)
	}
	<-rs.pumpDone
	delete(e.running, name)
}
