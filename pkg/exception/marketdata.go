package exception

import "errors"

var (
	ErrBookEmpty       = errors.New("market data: order book has no levels")
	ErrBookCrossed     = errors.New("market data: best bid >= best ask")
	ErrBookUnparseable = errors.New("market data: unparseable price level")
	ErrUnknownSymbol   = errors.New("market data: unknown symbol")
	ErrDepthExceeded   = errors.New("market data: depth exceeds configured capacity")
)
