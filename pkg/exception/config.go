package exception

import "errors"

// Config sentinels are stdlib errors so they stay matchable with
// errors.Is through fmt.Errorf %w chains.
var (
	ErrConfigEmptySources     = errors.New("config: no sources defined")
	ErrConfigDuplicateSource  = errors.New("config: duplicate exchange id")
	ErrConfigMissingEndpoint  = errors.New("config: missing endpoint url")
	ErrConfigNoSymbols        = errors.New("config: source has no symbols")
	ErrConfigInvalidThreshold = errors.New("config: threshold must be > 0")
)
