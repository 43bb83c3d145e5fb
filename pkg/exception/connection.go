package exception

import "github.com/yanun0323/errors"

var (
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)
