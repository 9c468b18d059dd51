// Package trajectory holds the data model for multi-agent conversation
// trajectories and the bounded beam used to search over them.
package trajectory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Turn is a single agent contribution within a trajectory.
// Immutable once appended.
type Turn struct {
	AgentID     int               `json:"agent_id"`
	AgentRole   string            `json:"agent_role"`
	Observation string            `json:"observation"`
	Action      string            `json:"action"`
	TurnNumber  int               `json:"turn_number"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Trajectory is an append-only record of agent turns for one candidate
// conversation. Branching for beam search happens via Clone.
type Trajectory struct {
	TaskDescription  string             `json:"task_description"`
	MaxTurns         int                `json:"max_turns"`
	Turns            []Turn             `json:"turns"`
	Done             bool               `json:"done"`
	TotalReward      float64            `json:"total_reward"`
	RewardComponents map[string]float64 `json:"reward_components,omitempty"`
	Metadata         map[string]string  `json:"metadata,omitempty"`

	rewardsSet bool
}

// New returns an empty trajectory for a task.
func New(taskDescription string, maxTurns int) *Trajectory {
	return &Trajectory{
		TaskDescription: taskDescription,
		MaxTurns:        maxTurns,
	}
}

// AddTurn appends a turn. Turn numbers are 1-based and contiguous; the
// trajectory flips to done when MaxTurns is reached. No other side effects.
func (t *Trajectory) AddTurn(agentID int, agentRole, observation, action string, metadata map[string]string) {
	t.Turns = append(t.Turns, Turn{
		AgentID:     agentID,
		AgentRole:   agentRole,
		Observation: observation,
		Action:      action,
		TurnNumber:  len(t.Turns) + 1,
		Metadata:    cloneStringMap(metadata),
	})

	if len(t.Turns) >= t.MaxTurns {
		t.Done = true
	}
}

// Len returns the number of turns.
func (t *Trajectory) Len() int {
	return len(t.Turns)
}

// Clone returns a fully independent deep copy. Every beam branch owns its
// clone exclusively, so no locking is needed on the trajectory itself.
func (t *Trajectory) Clone() *Trajectory {
	nt := &Trajectory{
		TaskDescription: t.TaskDescription,
		MaxTurns:        t.MaxTurns,
		Done:            t.Done,
		TotalReward:     t.TotalReward,
		Metadata:        cloneStringMap(t.Metadata),
		rewardsSet:      t.rewardsSet,
	}

	if t.Turns != nil {
		nt.Turns = make([]Turn, len(t.Turns))
		for i, turn := range t.Turns {
			turn.Metadata = cloneStringMap(turn.Metadata)
			nt.Turns[i] = turn
		}
	}
	if t.RewardComponents != nil {
		nt.RewardComponents = make(map[string]float64, len(t.RewardComponents))
		for k, v := range t.RewardComponents {
			nt.RewardComponents[k] = v
		}
	}

	return nt
}

// NoTurnsSentinel is returned by ContextForAgent when the conversation is
// empty, signalling to the sampling layer that the agent goes first.
const NoTurnsSentinel = "(No conversation yet - you're going first)"

// ContextForAgent serializes the task description plus the last maxHistory
// turns (oldest first) into the text block fed to the sampling layer.
func (t *Trajectory) ContextForAgent(maxHistory int) string {
	var sb strings.Builder

	if t.TaskDescription != "" {
		sb.WriteString("Task: " + t.TaskDescription + "\n\n")
	}

	if len(t.Turns) == 0 {
		sb.WriteString(NoTurnsSentinel)
		return sb.String()
	}

	sb.WriteString("Conversation so far:")
	recent := t.Turns
	if maxHistory > 0 && len(recent) > maxHistory {
		recent = recent[len(recent)-maxHistory:]
	}
	for _, turn := range recent {
		sb.WriteString(fmt.Sprintf("\nTurn %d | %s: %s", turn.TurnNumber, turn.AgentRole, turn.Action))
	}

	return sb.String()
}

// Conversation renders the full conversation, used by judges, behavior
// extraction and exports.
func (t *Trajectory) Conversation() string {
	if len(t.Turns) == 0 {
		return "(Empty trajectory)"
	}

	var sb strings.Builder
	sb.WriteString("Task: " + t.TaskDescription + "\n")
	for _, turn := range t.Turns {
		sb.WriteString(fmt.Sprintf("\nTurn %d | %s:\n%s\n", turn.TurnNumber, turn.AgentRole, turn.Action))
	}
	return sb.String()
}

// SetRewards assigns the final rewards exactly once, after the trajectory is
// done. Reassigning is an implementation error.
func (t *Trajectory) SetRewards(total float64, components map[string]float64) error {
	if t.rewardsSet {
		return fmt.Errorf("rewards already set (total=%.4f)", t.TotalReward)
	}
	t.TotalReward = total
	t.RewardComponents = make(map[string]float64, len(components))
	for k, v := range components {
		t.RewardComponents[k] = v
	}
	t.rewardsSet = true
	return nil
}

// RewardsSet reports whether SetRewards has been called.
func (t *Trajectory) RewardsSet() bool {
	return t.rewardsSet
}

// Fingerprint is a content-addressed hash of the serialized conversation,
// used to deduplicate judge calls for identical transcripts.
func (t *Trajectory) Fingerprint() string {
	sum := sha256.Sum256([]byte(t.Conversation()))
	return hex.EncodeToString(sum[:])
}

// Marshal serializes the trajectory losslessly for checkpointing.
func (t *Trajectory) Marshal() ([]byte, error) {
	type wire struct {
		Trajectory
		RewardsSet bool `json:"rewards_set"`
	}
	data, err := json.MarshalIndent(wire{Trajectory: *t, RewardsSet: t.rewardsSet}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trajectory: %w", err)
	}
	return data, nil
}

// Unmarshal reconstructs a trajectory saved with Marshal.
func Unmarshal(data []byte) (*Trajectory, error) {
	var wire struct {
		Trajectory
		RewardsSet bool `json:"rewards_set"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trajectory: %w", err)
	}
	t := wire.Trajectory
	t.rewardsSet = wire.RewardsSet
	return &t, nil
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
