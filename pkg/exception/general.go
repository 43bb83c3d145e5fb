package exception

import "errors"

// General errors
var (
	ErrNilInstance         = errors.New("nil instance")
	ErrArgumentUnsupported = errors.New("argument unsupported")
)
