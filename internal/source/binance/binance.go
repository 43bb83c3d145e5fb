// Package binance adapts the Binance combined-stream endpoint: diff-depth
// and trade streams over websocket, seeded by a REST depth snapshot after
// every (re)connect.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/pool"
	"main/internal/source"
	"main/pkg/exception"
)

const (
	snapshotDepth  = 100
	eventQueueSize = 4096
	restTimeout    = 5 * time.Second
	readDeadline   = 90 * time.Second
)

// Binance is a source.Source over the public market-data streams.
type Binance struct {
	cfg     source.Config
	books   *pool.Pool[model.OrderBook]
	backoff source.Backoff

	events  chan source.Event
	rest    *http.Client
	symbols map[string]model.Symbol // concatenated name -> symbol

	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	dropped atomic.Uint64
}

// New builds the adapter. Snapshot books are checked out of the shared
// pool and handed to the consumer through events.
func New(cfg source.Config, books *pool.Pool[model.OrderBook]) *Binance {
	symbols := make(map[string]model.Symbol, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		symbols[symbol.Concat()] = symbol
	}
	return &Binance{
		cfg:     cfg,
		books:   books,
		backoff: source.DefaultBackoff(),
		events:  make(chan source.Event, eventQueueSize),
		rest:    &http.Client{Timeout: restTimeout},
		symbols: symbols,
		done:    make(chan struct{}),
	}
}

// ID returns the configured exchange name.
func (b *Binance) ID() string {
	return b.cfg.Exchange
}

// Events returns the adapter output channel.
func (b *Binance) Events() <-chan source.Event {
	return b.events
}

// Start validates the configuration and launches the connection loop.
func (b *Binance) Start(ctx context.Context) error {
	if b.cfg.WSURL == "" || b.cfg.RESTURL == "" {
		return exception.ErrConfigMissingEndpoint
	}
	if len(b.cfg.Symbols) == 0 {
		return exception.ErrConfigNoSymbols
	}
	if !b.started.CompareAndSwap(false, true) {
		return exception.ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	go b.run(runCtx)
	return nil
}

// Close stops the connection loop and waits for it to drain.
func (b *Binance) Close() error {
	if !b.started.Load() {
		return nil
	}
	if b.cancel != nil {
		b.cancel()
	}
	<-b.done
	return nil
}

// Dropped reports events discarded because the consumer lagged.
func (b *Binance) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Binance) run(ctx context.Context) {
	defer close(b.done)
	defer close(b.events)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		b.emit(ctx, source.Event{Kind: source.EventState, Exchange: b.ID(), State: source.StateConnecting})
		err := b.session(ctx)
		if ctx.Err() != nil {
			return
		}

		b.emit(ctx, source.Event{Kind: source.EventState, Exchange: b.ID(), State: source.StateDisconnected})
		if err != nil {
			b.emit(ctx, source.Event{Kind: source.EventErr, Exchange: b.ID(), Err: err})
		}

		attempt++
		if b.cfg.MaxReconnectAttempts > 0 && attempt > b.cfg.MaxReconnectAttempts {
			logs.Errorf("source %s exhausted %d reconnect attempts", b.ID(), b.cfg.MaxReconnectAttempts)
			b.emit(ctx, source.Event{Kind: source.EventState, Exchange: b.ID(), State: source.StateFailed})
			b.emit(ctx, source.Event{Kind: source.EventErr, Exchange: b.ID(), Err: exception.ErrReconnectExhausted})
			return
		}

		wait := b.backoff.Next(attempt)
		if b.cfg.ReconnectInterval > 0 && wait < b.cfg.ReconnectInterval {
			wait = b.cfg.ReconnectInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// session runs one websocket connection to completion.
func (b *Binance) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.streamURL(), nil)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	b.emit(ctx, source.Event{Kind: source.EventState, Exchange: b.ID(), State: source.StateConnected})
	if err := b.seed(ctx); err != nil {
		return err
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read")
		}
		b.dispatch(ctx, message)
	}
}

// seed fetches one REST snapshot per symbol so deltas have a base book.
func (b *Binance) seed(ctx context.Context) error {
	for _, symbol := range b.cfg.Symbols {
		book, err := b.FetchSnapshot(ctx, symbol)
		if err != nil {
			return err
		}
		b.emit(ctx, source.Event{Kind: source.EventSnapshot, Exchange: b.ID(), Book: book})
	}
	return nil
}

func (b *Binance) dispatch(ctx context.Context, message []byte) {
	var envelope streamEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil || len(envelope.Data) == 0 {
		return
	}

	switch {
	case strings.Contains(envelope.Stream, "@depth"):
		b.dispatchDepth(ctx, envelope.Data)
	case strings.Contains(envelope.Stream, "@trade"):
		b.dispatchTrade(ctx, envelope.Data)
	}
}

func (b *Binance) dispatchDepth(ctx context.Context, data []byte) {
	var payload depthUpdate
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	symbol, ok := b.symbols[payload.Symbol]
	if !ok {
		return
	}

	delta := &model.Delta{
		Exchange: b.ID(),
		Symbol:   symbol,
		TsNano:   payload.EventTs * int64(time.Millisecond),
		Seq:      payload.FinalSeq,
	}
	var err error
	if delta.Bids, err = parseLevels(delta.Bids, payload.Bids); err != nil {
		b.emit(ctx, source.Event{Kind: source.EventErr, Exchange: b.ID(), Err: err})
		return
	}
	if delta.Asks, err = parseLevels(delta.Asks, payload.Asks); err != nil {
		b.emit(ctx, source.Event{Kind: source.EventErr, Exchange: b.ID(), Err: err})
		return
	}
	b.emit(ctx, source.Event{Kind: source.EventDelta, Exchange: b.ID(), Delta: delta})
}

func (b *Binance) dispatchTrade(ctx context.Context, data []byte) {
	var payload tradePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	symbol, ok := b.symbols[payload.Symbol]
	if !ok {
		return
	}
	price, err := model.ParsePrice(payload.Price)
	if err != nil {
		return
	}
	qty, err := model.ParseQuantity(payload.Quantity)
	if err != nil {
		return
	}

	// buyer-is-maker means the seller crossed the spread
	side := model.TradeSideBuy
	if payload.BuyerIsMaker {
		side = model.TradeSideSell
	}
	b.emit(ctx, source.Event{
		Kind:     source.EventTrade,
		Exchange: b.ID(),
		Trade: model.TradeUpdate{
			Exchange: b.ID(),
			Symbol:   symbol,
			Price:    price,
			Quantity: qty,
			Side:     side,
			TsNano:   payload.EventTs * int64(time.Millisecond),
			TradeID:  strconv.FormatInt(payload.TradeID, 10),
		},
	})
}

// FetchSnapshot fetches a full depth snapshot out of band. The returned
// book comes from the pool and ownership passes to the caller.
func (b *Binance) FetchSnapshot(ctx context.Context, symbol model.Symbol) (*model.OrderBook, error) {
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d",
		strings.TrimSuffix(b.cfg.RESTURL, "/"), symbol.Concat(), snapshotDepth)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot request")
	}
	resp, err := b.rest.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot fetch")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("snapshot fetch %s: status %d", symbol.Concat(), resp.StatusCode)
	}

	var payload restDepth
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "snapshot decode")
	}

	book := b.books.Get()
	book.Exchange = b.ID()
	book.Symbol = symbol
	book.Seq = payload.LastUpdateID
	book.TsNano = time.Now().UnixNano()
	if book.Bids, err = parseLevels(book.Bids[:0], payload.Bids); err != nil {
		b.books.Put(book)
		return nil, err
	}
	if book.Asks, err = parseLevels(book.Asks[:0], payload.Asks); err != nil {
		b.books.Put(book)
		return nil, err
	}
	return book, nil
}

// streamURL builds the combined stream endpoint for every configured
// symbol and channel.
func (b *Binance) streamURL() string {
	var streams []string
	for _, symbol := range b.cfg.Symbols {
		name := strings.ToLower(symbol.Concat())
		if b.cfg.Channel == "" || b.cfg.Channel == "depth" {
			streams = append(streams, name+"@depth@100ms")
		}
		if b.cfg.Channel == "" || b.cfg.Channel == "trade" {
			streams = append(streams, name+"@trade")
		}
	}
	return strings.TrimSuffix(b.cfg.WSURL, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

// emit never blocks the read loop: a lagging consumer costs events, not
// connection health. Pooled books return to the pool on drop.
func (b *Binance) emit(ctx context.Context, event source.Event) {
	if ctx.Err() != nil && event.Kind != source.EventState {
		if event.Book != nil {
			b.books.Put(event.Book)
		}
		return
	}
	select {
	case b.events <- event:
	default:
		if event.Book != nil {
			b.books.Put(event.Book)
		}
		b.dropped.Add(1)
	}
}
