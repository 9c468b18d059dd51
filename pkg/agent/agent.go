// Package agent describes the members of a collaborating agent team: their
// roles, goals, and the learned behaviors spliced into their prompts.
package agent

import (
	"fmt"
	"strings"
)

// DefaultMaxBehaviors bounds how many learned behaviors an agent retains.
const DefaultMaxBehaviors = 10

// promptBehaviors is how many of the most recent behaviors are spliced into
// the system prompt. Kept smaller than the retention bound to control prompt
// growth.
const promptBehaviors = 5

// Agent is the descriptor for one team member. Behaviors are mutated only by
// the behavior library's update step, between episodes.
type Agent struct {
	ID           int
	Role         string
	Goal         string
	BasePrompt   string
	MaxBehaviors int

	learnedBehaviors []string
}

// New creates an agent descriptor with the default behavior bound.
func New(id int, role, goal, basePrompt string) *Agent {
	return &Agent{
		ID:           id,
		Role:         role,
		Goal:         goal,
		BasePrompt:   basePrompt,
		MaxBehaviors: DefaultMaxBehaviors,
	}
}

// SystemPrompt builds the full prompt: base prompt, goal, and the most recent
// learned behaviors.
func (a *Agent) SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString(a.BasePrompt)

	if a.Goal != "" {
		sb.WriteString(fmt.Sprintf("\n\nYour specific goal: %s", a.Goal))
	}

	recent := a.RecentBehaviors(promptBehaviors)
	if len(recent) > 0 {
		sb.WriteString("\n\nLearned Successful Behaviors:\n")
		for _, b := range recent {
			sb.WriteString("- " + b + "\n")
		}
	}

	return sb.String()
}

// AddBehaviors appends new behaviors, skipping duplicates, and trims to the
// most recent MaxBehaviors.
func (a *Agent) AddBehaviors(behaviors []string) {
	for _, b := range behaviors {
		b = strings.TrimSpace(b)
		if b == "" || a.hasBehavior(b) {
			continue
		}
		a.learnedBehaviors = append(a.learnedBehaviors, b)
	}

	limit := a.MaxBehaviors
	if limit <= 0 {
		limit = DefaultMaxBehaviors
	}
	if len(a.learnedBehaviors) > limit {
		a.learnedBehaviors = a.learnedBehaviors[len(a.learnedBehaviors)-limit:]
	}
}

// RecentBehaviors returns up to n of the most recently learned behaviors,
// oldest first.
func (a *Agent) RecentBehaviors(n int) []string {
	if n <= 0 || len(a.learnedBehaviors) == 0 {
		return nil
	}
	start := 0
	if len(a.learnedBehaviors) > n {
		start = len(a.learnedBehaviors) - n
	}
	out := make([]string, len(a.learnedBehaviors)-start)
	copy(out, a.learnedBehaviors[start:])
	return out
}

// BehaviorCount returns how many behaviors the agent currently retains.
func (a *Agent) BehaviorCount() int {
	return len(a.learnedBehaviors)
}

func (a *Agent) hasBehavior(b string) bool {
	for _, existing := range a.learnedBehaviors {
		if existing == b {
			return true
		}
	}
	return false
}

// Roles extracts the role names from a team, in team order.
func Roles(team []*Agent) []string {
	roles := make([]string, len(team))
	for i, a := range team {
		roles[i] = a.Role
	}
	return roles
}
