package scoring

import (
	"context"
	"fmt"
)

// Linear is a weighted sum of the columns plus an intercept, passed through a
// link function.
type Linear struct {
	intercept float64
	weights   []float64 // aligned with the configured columns
	link      Link
}

// NewLinear builds a linear model over columns. Weights are keyed by column
// name; columns without a weight contribute nothing.
func NewLinear(columns []string, intercept float64, weights map[string]float64, link Link) (*Linear, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidModel)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: linear model has no weights", ErrInvalidModel)
	}
	l, err := parseLink(string(link))
	if err != nil {
		return nil, err
	}
	lookup := resolve(columns)
	m := &Linear{intercept: intercept, weights: make([]float64, len(columns)), link: l}
	for name, w := range weights {
		i, err := lookup(name)
		if err != nil {
			return nil, err
		}
		m.weights[i] = w
	}
	return m, nil
}

// Predict scores every row.
func (m *Linear) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if err := checkRows(ctx, rows, len(m.weights)); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		sum := m.intercept
		for j, w := range m.weights {
			sum += w * row[j]
		}
		out[i] = m.link.apply(sum)
	}
	return out, nil
}
