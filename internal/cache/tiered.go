// Package cache implements the multi-tier book cache: a bounded in-memory
// tier for hot symbols, a badger-backed overflow tier, and an optional
// file archive tier. Writes land in tier 1; eviction cascades downward.
// A key lives in exactly one tier at a time.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/pool"
	"main/pkg/exception"
)

// Config controls tier sizing and placement.
type Config struct {
	T1Capacity int
	T2Dir      string
	T2TTL      time.Duration
	// ArchiveAfter moves tier-2 entries older than this into tier 3.
	ArchiveAfter  time.Duration
	T3Dir         string
	T3TTL         time.Duration
	T3Enabled     bool
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.T1Capacity <= 0 {
		c.T1Capacity = 1024
	}
	if c.T2TTL <= 0 {
		c.T2TTL = time.Hour
	}
	if c.ArchiveAfter <= 0 {
		c.ArchiveAfter = 10 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	T1Hits      uint64
	T2Hits      uint64
	T3Hits      uint64
	Misses      uint64
	T1Evictions uint64
	Archived    uint64
	T1Size      int
}

// HitRate returns hits/(hits+misses) across all tiers.
func (s Stats) HitRate() float64 {
	hits := s.T1Hits + s.T2Hits + s.T3Hits
	total := hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Tiered is the multi-tier cache facade.
type Tiered struct {
	cfg   Config
	t1    *memoryTier
	t2    *diskTier
	t3    *archiveTier
	books *pool.Pool[model.OrderBook]

	// moving holds tier-1 victims until their tier-2 write lands, so a
	// concurrent read never sees the key in no tier at all.
	movingMu sync.Mutex
	moving   map[Key]*model.OrderBook

	t1Hits      atomic.Uint64
	t2Hits      atomic.Uint64
	t3Hits      atomic.Uint64
	misses      atomic.Uint64
	t1Evictions atomic.Uint64
	archived    atomic.Uint64

	closed atomic.Bool
}

// NewTiered opens all configured tiers. Tier 2 recovers its prior contents
// from disk; tier 3 is opened only when enabled.
func NewTiered(cfg Config, books *pool.Pool[model.OrderBook]) (*Tiered, error) {
	cfg = cfg.withDefaults()
	t2, err := newDiskTier(cfg.T2Dir, cfg.T2TTL)
	if err != nil {
		return nil, err
	}
	var t3 *archiveTier
	if cfg.T3Enabled {
		t3, err = newArchiveTier(cfg.T3Dir, cfg.T3TTL)
		if err != nil {
			_ = t2.close()
			return nil, err
		}
	}
	return &Tiered{
		cfg:    cfg,
		t1:     newMemoryTier(cfg.T1Capacity),
		t2:     t2,
		t3:     t3,
		books:  books,
		moving: make(map[Key]*model.OrderBook),
	}, nil
}

// Put stores book under key, taking ownership of it. A superseded book for
// the same key returns to the pool; a capacity victim cascades to tier 2.
func (c *Tiered) Put(key Key, book *model.OrderBook) error {
	if c == nil || book == nil {
		return exception.ErrNilInstance
	}
	if c.closed.Load() {
		return exception.ErrCacheClosed
	}

	// the victim registers as in-flight before its tier-1 removal is
	// observable, so readers never find the key in no tier at all
	c.movingMu.Lock()
	superseded, evicted := c.t1.put(key, book)
	if evicted != nil {
		c.moving[evicted.key] = evicted.book
	}
	c.movingMu.Unlock()
	if superseded != nil {
		c.books.Put(superseded)
	}
	if evicted == nil {
		return nil
	}

	c.t1Evictions.Add(1)

	encoded, err := EncodeBook(nil, evicted.book)
	var setErr error
	if err == nil {
		setErr = c.t2.set(evicted.key, encoded)
	}

	c.movingMu.Lock()
	if c.moving[evicted.key] == evicted.book {
		delete(c.moving, evicted.key)
	}
	c.movingMu.Unlock()
	c.books.Put(evicted.book)
	if err != nil {
		return err
	}
	return setErr
}

// Get returns an independent copy of the newest value for key across
// whichever tier holds it, promoting lower-tier hits back into tier 1.
func (c *Tiered) Get(key Key) (*model.OrderBook, error) {
	if c == nil {
		return nil, exception.ErrNilInstance
	}
	if c.closed.Load() {
		return nil, exception.ErrCacheClosed
	}

	if book, ok := c.t1.get(key); ok {
		c.t1Hits.Add(1)
		return book, nil
	}

	c.movingMu.Lock()
	if book, ok := c.moving[key]; ok {
		out := book.Clone()
		c.movingMu.Unlock()
		c.t1Hits.Add(1)
		return out, nil
	}
	c.movingMu.Unlock()

	if encoded, err := c.t2.get(key); err == nil {
		c.t2Hits.Add(1)
		return c.promote(key, encoded, c.t2.delete)
	} else if !errors.Is(err, exception.ErrCacheMiss) {
		return nil, err
	}

	if c.t3 != nil {
		if encoded, err := c.t3.get(key); err == nil {
			c.t3Hits.Add(1)
			return c.promote(key, encoded, c.t3.delete)
		} else if !errors.Is(err, exception.ErrCacheMiss) {
			return nil, err
		}
	}

	c.misses.Add(1)
	return nil, exception.ErrCacheMiss
}

// promote decodes a lower-tier hit into a pooled book, moves it into tier 1
// and removes the lower-tier copy so the key stays single-owner.
func (c *Tiered) promote(key Key, encoded []byte, remove func(Key) error) (*model.OrderBook, error) {
	book := c.books.Get()
	if err := DecodeBook(encoded, book); err != nil {
		c.books.Put(book)
		return nil, err
	}
	if err := remove(key); err != nil {
		c.books.Put(book)
		return nil, err
	}
	out := book.Clone()
	if err := c.Put(key, book); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops key from every tier.
func (c *Tiered) Invalidate(key Key) error {
	if book := c.t1.remove(key); book != nil {
		c.books.Put(book)
	}
	if err := c.t2.delete(key); err != nil {
		return err
	}
	if c.t3 != nil {
		return c.t3.delete(key)
	}
	return nil
}

// InvalidateExchange drops every key of one exchange from every tier.
func (c *Tiered) InvalidateExchange(exchange string) error {
	for _, book := range c.t1.removeExchange(exchange) {
		c.books.Put(book)
	}
	if err := c.t2.deletePrefix(exchangePrefix(exchange)); err != nil {
		return err
	}
	if c.t3 != nil {
		return c.t3.deletePrefix(exchangePrefix(exchange))
	}
	return nil
}

// RunSweeper cascades aged tier-2 entries into tier 3 and applies the
// tier-3 TTL until the context is done.
func (c *Tiered) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOnce()
		}
	}
}

func (c *Tiered) sweepOnce() {
	if c.t3 == nil {
		return
	}
	err := c.t2.sweep(c.cfg.ArchiveAfter, func(key Key, encoded []byte) bool {
		if err := c.t3.set(key, encoded); err != nil {
			logs.Errorf("archive %s, err: %+v", key.String(), err)
			return false
		}
		c.archived.Add(1)
		return true
	})
	if err != nil {
		logs.Errorf("tier-2 sweep, err: %+v", err)
	}
	if err := c.t3.sweep(); err != nil {
		logs.Errorf("tier-3 sweep, err: %+v", err)
	}
}

// Stats snapshots the cache counters.
func (c *Tiered) Stats() Stats {
	return Stats{
		T1Hits:      c.t1Hits.Load(),
		T2Hits:      c.t2Hits.Load(),
		T3Hits:      c.t3Hits.Load(),
		Misses:      c.misses.Load(),
		T1Evictions: c.t1Evictions.Load(),
		Archived:    c.archived.Load(),
		T1Size:      c.t1.len(),
	}
}

// Close releases tier-1 books to the pool and closes the disk tier.
func (c *Tiered) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.t2.close()
}
