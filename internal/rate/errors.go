package rate

import "errors"

var (
	// ErrRateLimited signals that the attempt budget for the window is
	// exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
