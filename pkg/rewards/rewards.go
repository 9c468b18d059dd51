// Package rewards scores finished trajectories: a level-gated evaluator for
// code collaboration, a weighted judge-based evaluator for research output,
// and a budget tracker that bounds total API spend.
package rewards

import (
	"context"

	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

// Result is a scored evaluation: the scalar used for selection plus its
// per-component breakdown.
type Result struct {
	Total      float64
	Components map[string]float64
}

// Evaluator scores a finished trajectory. Task implementations adapt their
// concrete evaluators (level-gated or weighted) to this interface.
type Evaluator interface {
	Evaluate(ctx context.Context, t *trajectory.Trajectory) (Result, error)
}
