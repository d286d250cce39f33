package encoding

import "errors"

// Sentinel kinds for layout errors.
var (
	ErrEmptyLayout     = errors.New("feature column list is empty")
	ErrUnknownColumn   = errors.New("unknown feature column")
	ErrDuplicateColumn = errors.New("duplicate feature column")
)
