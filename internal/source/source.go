// Package source defines the market-data adapter contract. Adapters own
// their connection lifecycle including reconnects; the orchestrator only
// consumes events and observes connection state changes.
package source

import (
	"context"
	"time"

	"main/internal/model"
)

// EventKind discriminates the adapter event union.
type EventKind uint8

const (
	EventSnapshot EventKind = iota + 1
	EventDelta
	EventTrade
	EventState
	EventErr
)

// ConnState is the adapter connection health, surfaced as events so the
// orchestrator forwards health without owning retries.
type ConnState uint8

const (
	StateConnecting ConnState = iota + 1
	StateConnected
	StateDisconnected
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one adapter output. Exactly one payload field is set per kind.
// Snapshot books come from the shared pool and ownership transfers to the
// consumer.
type Event struct {
	Kind     EventKind
	Exchange string

	Book  *model.OrderBook  // EventSnapshot
	Delta *model.Delta      // EventDelta
	Trade model.TradeUpdate // EventTrade
	State ConnState         // EventState
	Err   error             // EventErr
}

// Source is one exchange feed.
type Source interface {
	// ID returns the exchange name this adapter feeds from.
	ID() string
	// Start connects, subscribes and begins emitting events. Reconnection
	// is the adapter's job; Start only fails on unusable configuration.
	Start(ctx context.Context) error
	// Events returns the adapter output channel. It closes after the
	// adapter terminates.
	Events() <-chan Event
	// FetchSnapshot fetches one full book out of band.
	FetchSnapshot(ctx context.Context, symbol model.Symbol) (*model.OrderBook, error)
	// Close tears the adapter down and releases its connection.
	Close() error
}

// Config describes one configured source.
type Config struct {
	Exchange string
	Enabled  bool
	Symbols  []model.Symbol
	WSURL    string
	RESTURL  string
	Channel  string

	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	APIKey    string
	APISecret string
}

// Equal reports whether two configs would produce the same running source.
// Credentials and endpoints all participate: any difference means teardown
// and restart.
func (c Config) Equal(other Config) bool {
	if c.Exchange != other.Exchange ||
		c.Enabled != other.Enabled ||
		c.WSURL != other.WSURL ||
		c.RESTURL != other.RESTURL ||
		c.Channel != other.Channel ||
		c.ReconnectInterval != other.ReconnectInterval ||
		c.MaxReconnectAttempts != other.MaxReconnectAttempts ||
		c.APIKey != other.APIKey ||
		c.APISecret != other.APISecret {
		return false
	}
	if len(c.Symbols) != len(other.Symbols) {
		return false
	}
	for i := range c.Symbols {
		if c.Symbols[i] != other.Symbols[i] {
			return false
		}
	}
	return true
}
