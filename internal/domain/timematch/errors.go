package timematch

import "errors"

// Sentinel kinds for time parsing errors.
var (
	ErrInvalidWindow    = errors.New("invalid active-hours window")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)
