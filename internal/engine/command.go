package engine

import (
	"context"

	"main/internal/model"
	"main/internal/source"
	"main/pkg/exception"
)

type requestKind uint8

const (
	reqGetOrderBook requestKind = iota + 1
	reqGetAllOrderBooks
	reqGetStats
	reqReconfigure
	reqStartCollectors
)

// request is one command into the orchestrator loop. resp is buffered so
// the loop never blocks on a caller that gave up.
type request struct {
	kind     requestKind
	exchange string
	symbol   model.Symbol
	configs  []source.Config
	resp     chan response
}

type response struct {
	book  *model.OrderBook
	books []*model.OrderBook
	stats model.PerformanceStats
	err   error
}

// Client is the caller-side command surface. Every method replies exactly
// once or fails with ErrCommandChannelClosed after the engine terminated.
type Client struct {
	engine *Engine
}

// Client returns the command surface of this engine.
func (e *Engine) Client() *Client {
	return &Client{engine: e}
}

func (c *Client) send(ctx context.Context, req request) (response, error) {
	req.resp = make(chan response, 1)
	select {
	case <-c.engine.done:
		return response{}, exception.ErrCommandChannelClosed
	case <-ctx.Done():
		return response{}, exception.ErrCommandTimeout
	case c.engine.cmds <- req:
	}
	select {
	case <-c.engine.done:
		return response{}, exception.ErrCommandChannelClosed
	case <-ctx.Done():
		return response{}, exception.ErrCommandTimeout
	case resp := <-req.resp:
		return resp, resp.err
	}
}

// GetOrderBook returns an independent copy of the newest canonical book.
func (c *Client) GetOrderBook(ctx context.Context, exchange string, symbol model.Symbol) (*model.OrderBook, error) {
	resp, err := c.send(ctx, request{kind: reqGetOrderBook, exchange: exchange, symbol: symbol})
	if err != nil {
		return nil, err
	}
	return resp.book, nil
}

// GetAllOrderBooks returns independent copies of every canonical book.
func (c *Client) GetAllOrderBooks(ctx context.Context) ([]*model.OrderBook, error) {
	resp, err := c.send(ctx, request{kind: reqGetAllOrderBooks})
	if err != nil {
		return nil, err
	}
	return resp.books, nil
}

// GetStats returns the current performance counters.
func (c *Client) GetStats(ctx context.Context) (model.PerformanceStats, error) {
	resp, err := c.send(ctx, request{kind: reqGetStats})
	if err != nil {
		return model.PerformanceStats{}, err
	}
	return resp.stats, nil
}

// Reconfigure applies a new source set. Unchanged sources keep running,
// removed ones are torn down with their state, added ones start. An
// invalid set is rejected whole, leaving the running set untouched.
func (c *Client) Reconfigure(ctx context.Context, configs []source.Config) error {
	_, err := c.send(ctx, request{kind: reqReconfigure, configs: configs})
	return err
}

// StartCollectors starts every enabled configured source.
func (c *Client) StartCollectors(ctx context.Context) error {
	_, err := c.send(ctx, request{kind: reqStartCollectors})
	return err
}
