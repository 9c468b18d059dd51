// Package optimizer implements group-relative trajectory selection: advantages
// relative to the group mean, epsilon-greedy choice over them, and the
// gradient-mode policy loss for trainable agents.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

// ComputeAdvantages returns each trajectory's return minus the group mean.
// By construction the advantages sum to zero.
func ComputeAdvantages(returns []float64) []float64 {
	if len(returns) == 0 {
		return nil
	}

	mean := Mean(returns)
	advantages := make([]float64, len(returns))
	for i, r := range returns {
		advantages[i] = r - mean
	}
	return advantages
}

// SelectBest picks a trajectory index from the group: with probability epsilon
// a uniformly random one (exploration), otherwise the highest-advantage one.
// Ties resolve to the earliest index. rng may be nil for a non-deterministic
// source.
func SelectBest(advantages []float64, epsilon float64, rng *rand.Rand) (int, error) {
	if len(advantages) == 0 {
		return 0, fmt.Errorf("empty advantage group")
	}

	randFloat, randIntn := rand.Float64, rand.Intn
	if rng != nil {
		randFloat, randIntn = rng.Float64, rng.Intn
	}

	if epsilon > 0 && randFloat() < epsilon {
		return randIntn(len(advantages)), nil
	}

	best := 0
	for i := 1; i < len(advantages); i++ {
		if advantages[i] > advantages[best] {
			best = i
		}
	}
	return best, nil
}

// TrainableAgent is the optional capability for gradient-mode training: the
// log probability of an action given its observation under the agent's policy.
type TrainableAgent interface {
	ComputeLogProb(ctx context.Context, observation, action string) (float64, error)
}

// ComputePolicyLoss computes the policy-gradient loss for one agent:
// -(advantage * logprob), averaged over that agent's turns across the group.
// An agent with no turns gets zero loss.
func ComputePolicyLoss(ctx context.Context, trajectories []*trajectory.Trajectory, advantages []float64, agentID int, model TrainableAgent) (float64, error) {
	if len(trajectories) != len(advantages) {
		return 0, fmt.Errorf("group size mismatch: %d trajectories, %d advantages", len(trajectories), len(advantages))
	}

	totalLoss := 0.0
	count := 0

	for i, traj := range trajectories {
		for _, turn := range traj.Turns {
			if turn.AgentID != agentID {
				continue
			}
			logProb, err := model.ComputeLogProb(ctx, turn.Observation, turn.Action)
			if err != nil {
				return 0, fmt.Errorf("log prob for agent %d turn %d: %w", agentID, turn.TurnNumber, err)
			}
			totalLoss -= advantages[i] * logProb
			count++
		}
	}

	if count == 0 {
		return 0, nil
	}
	return totalLoss / float64(count), nil
}

// GroupMetrics summarizes one selection group for training logs.
type GroupMetrics struct {
	MeanReturn       float64
	StdReturn        float64
	MeanAbsAdvantage float64
}

// Summarize computes group statistics from returns and their advantages.
func Summarize(returns, advantages []float64) GroupMetrics {
	absAdvantages := make([]float64, len(advantages))
	for i, a := range advantages {
		absAdvantages[i] = math.Abs(a)
	}
	return GroupMetrics{
		MeanReturn:       Mean(returns),
		StdReturn:        StdDev(returns),
		MeanAbsAdvantage: Mean(absAdvantages),
	}
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation, 0 for an empty slice.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}
