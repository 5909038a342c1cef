package rate

import "errors"

var (
	// ErrRateLimited is returned once a username or IP exhausts its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
