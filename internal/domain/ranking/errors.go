package ranking

import "errors"

var (
	ErrNilModel       = errors.New("ranking: model is required")
	ErrNilLayout      = errors.New("ranking: column layout is required")
	ErrInvalidOption  = errors.New("ranking: invalid option")
	ErrModel          = errors.New("ranking: model prediction failed")
	ErrScoreCount     = errors.New("ranking: model returned wrong number of scores")
	ErrNonFiniteScore = errors.New("ranking: model returned a non-finite score")
)
