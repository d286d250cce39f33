// Package scoring defines the contract for the pretrained relevance model and
// loads its artifacts from disk.
//
// A model receives an ordered numeric matrix, one row per post, and returns
// one score per row. Loaded models are immutable and safe for concurrent use.
package scoring

import (
	"context"
	"fmt"
	"math"
)

// Kind names a model family an artifact can describe.
type Kind string

// Supported model kinds.
const (
	KindLinear Kind = "linear"
	KindGBDT   Kind = "gbdt"
)

// Link maps the raw model output onto the score scale.
type Link string

// Supported link functions.
const (
	LinkIdentity Link = "identity"
	LinkLogistic Link = "logistic"
)

func (l Link) apply(x float64) float64 {
	if l == LinkLogistic {
		return 1 / (1 + math.Exp(-x))
	}
	return x
}

func parseLink(s string) (Link, error) {
	switch Link(s) {
	case "", LinkIdentity:
		return LinkIdentity, nil
	case LinkLogistic:
		return LinkLogistic, nil
	default:
		return "", fmt.Errorf("%w: unknown link %q", ErrInvalidModel, s)
	}
}

// Model predicts one relevance score per row.
type Model interface {
	Predict(ctx context.Context, rows [][]float64) ([]float64, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, rows [][]float64) ([]float64, error)

// Predict calls f.
func (f ModelFunc) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	return f(ctx, rows)
}

// Info describes a loaded artifact.
type Info struct {
	Kind    Kind
	Link    Link
	Version string
	Path    string
	Columns int
	Trees   int
}

func checkRows(ctx context.Context, rows [][]float64, width int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrRowWidth, i, len(row), width)
		}
	}
	return nil
}

// resolve maps a column name onto its position in the configured order.
func resolve(columns []string) func(name string) (int, error) {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, fmt.Errorf("%w: feature %q is not in the configured columns", ErrInvalidModel, name)
		}
		return i, nil
	}
}
