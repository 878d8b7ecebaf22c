package abuse

import "errors"

// ErrRateLimited is reported when a requester key or its IP is blocked.
var ErrRateLimited = errors.New("rate limited")
