// Package tasks defines the collaborator tasks the trainer optimizes over:
// two-agent code collaboration and the five-role research lab.
package tasks

import (
	"context"

	"github.com/Aerovity/Orchestry/pkg/agent"
	"github.com/Aerovity/Orchestry/pkg/rewards"
	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

// Config describes a task's episode shape.
type Config struct {
	MaxTurns int
	MinTurns int
	Type     string
}

// Observation is the initial episode state returned by Reset.
type Observation struct {
	TaskDescription string
	Topic           string
	Objective       string
	Metadata        map[string]string
}

// Task is one episode type the trainer can run. Reset starts a fresh episode
// and returns its description. Step mutates the task's own episode state for
// sequential (non-beam) execution; beam search instead keeps all state on the
// trajectory branches and consults only Complete and Evaluate, which must be
// pure functions of the trajectory.
type Task interface {
	Reset() Observation
	Step(agentID int, agentRole, action string) (done bool)
	Complete(t *trajectory.Trajectory) bool
	Evaluate(ctx context.Context, t *trajectory.Trajectory) (rewards.Result, error)
	Config() Config
	Team() []*agent.Agent
}
