package loadtest

import "errors"

// Sentinel errors.
var (
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrVerification = errors.New("response verification failed")
	ErrNoRequests   = errors.New("no requests to submit")
)
