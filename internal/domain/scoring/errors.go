package scoring

import "errors"

// Sentinel kinds for model errors.
var (
	ErrLoadModel    = errors.New("load model failed")
	ErrInvalidModel = errors.New("invalid model")
	ErrRowWidth     = errors.New("row width does not match model columns")
)
