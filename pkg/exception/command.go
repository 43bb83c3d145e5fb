package exception

import "errors"

var (
	// ErrCommandChannelClosed is observed by callers when the engine has
	// terminated before replying.
	ErrCommandChannelClosed = errors.New("command: channel closed")

	ErrCommandTimeout = errors.New("command: reply timeout")
	ErrBookNotFound   = errors.New("command: order book not found")
	ErrEngineNotReady = errors.New("command: engine not ready")
	ErrAlreadyStarted = errors.New("command: collectors already started")
)
