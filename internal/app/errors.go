package service

import "errors"

// Sentinel kinds returned by the service. The HTTP layer maps them to status
// codes.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrNoEngine     = errors.New("service has no ranking engine")
	ErrBackpressure = errors.New("ranking queue is full")
	ErrTimeout      = errors.New("ranking timed out")
	ErrBuildEngine  = errors.New("build ranking engine failed")
)
