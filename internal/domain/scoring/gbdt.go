package scoring

import (
	"context"
	"fmt"
)

// NodeSpec is one node of a decision tree as stored in an artifact. A node
// with Leaf set is terminal; otherwise rows with value <= Threshold go Left.
type NodeSpec struct {
	Feature   string   `koanf:"feature"`
	Threshold float64  `koanf:"threshold"`
	Left      int      `koanf:"left"`
	Right     int      `koanf:"right"`
	Leaf      *float64 `koanf:"leaf"`
}

// TreeSpec is a decision tree rooted at its first node.
type TreeSpec struct {
	Nodes []NodeSpec `koanf:"nodes"`
}

type node struct {
	feature     int
	threshold   float64
	left, right int
	leaf        float64
	terminal    bool
}

type tree []node

func (t tree) eval(row []float64) float64 {
	i := 0
	for !t[i].terminal {
		if row[t[i].feature] <= t[i].threshold {
			i = t[i].left
		} else {
			i = t[i].right
		}
	}
	return t[i].leaf
}

// Ensemble is an additive set of regression trees over a base score, the
// shape gradient-boosted models export to.
type Ensemble struct {
	base  float64
	trees []tree
	width int
	link  Link
}

// NewEnsemble compiles tree specs against the configured column order.
// Children must point forward in the node list so every walk terminates.
func NewEnsemble(columns []string, baseScore float64, specs []TreeSpec, link Link) (*Ensemble, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidModel)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: ensemble has no trees", ErrInvalidModel)
	}
	l, err := parseLink(string(link))
	if err != nil {
		return nil, err
	}
	lookup := resolve(columns)
	e := &Ensemble{base: baseScore, trees: make([]tree, len(specs)), width: len(columns), link: l}
	for ti, spec := range specs {
		if len(spec.Nodes) == 0 {
			return nil, fmt.Errorf("%w: tree %d is empty", ErrInvalidModel, ti)
		}
		t := make(tree, len(spec.Nodes))
		for ni, ns := range spec.Nodes {
			if ns.Leaf != nil {
				t[ni] = node{leaf: *ns.Leaf, terminal: true}
				continue
			}
			f, err := lookup(ns.Feature)
			if err != nil {
				return nil, fmt.Errorf("tree %d node %d: %w", ti, ni, err)
			}
			if ns.Left <= ni || ns.Right <= ni || ns.Left >= len(t) || ns.Right >= len(t) {
				return nil, fmt.Errorf("%w: tree %d node %d has bad children (%d, %d)", ErrInvalidModel, ti, ni, ns.Left, ns.Right)
			}
			t[ni] = node{feature: f, threshold: ns.Threshold, left: ns.Left, right: ns.Right}
		}
		e.trees[ti] = t
	}
	return e, nil
}

// Predict scores every row.
func (e *Ensemble) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if err := checkRows(ctx, rows, e.width); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		sum := e.base
		for _, t := range e.trees {
			sum += t.eval(row)
		}
		out[i] = e.link.apply(sum)
	}
	return out, nil
}
