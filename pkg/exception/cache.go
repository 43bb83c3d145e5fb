package exception

import "errors"

var (
	ErrCacheMiss      = errors.New("cache: key not found")
	ErrCacheClosed    = errors.New("cache: closed")
	ErrCacheCorrupted = errors.New("cache: corrupted entry")
)
