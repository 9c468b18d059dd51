package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Aerovity/Orchestry/pkg/agent"
	"github.com/Aerovity/Orchestry/pkg/rewards"
	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

// CodeProblem is one helper/main collaboration exercise.
type CodeProblem struct {
	ID              string             `json:"id"`
	Description     string             `json:"description"`
	HelperRole      string             `json:"helper_role"`
	MainRole        string             `json:"main_role"`
	HelperSignature string             `json:"helper_signature"`
	MainSignature   string             `json:"main_signature"`
	Tests           []rewards.TestCase `json:"tests"`
}

// HelperName returns the function name from the helper signature.
func (p CodeProblem) HelperName() string {
	return strings.SplitN(p.HelperSignature, "(", 2)[0]
}

// MainName returns the function name from the main signature.
func (p CodeProblem) MainName() string {
	return strings.SplitN(p.MainSignature, "(", 2)[0]
}

// LoadCodeProblems reads a {"problems": [...]} JSON dataset.
func LoadCodeProblems(path string) ([]CodeProblem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problems file: %w", err)
	}
	var wrapper struct {
		Problems []CodeProblem `json:"problems"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse problems file: %w", err)
	}
	if len(wrapper.Problems) == 0 {
		return nil, fmt.Errorf("problems file %s contains no problems", path)
	}
	return wrapper.Problems, nil
}

// DefaultCodeProblems is a small built-in set used when no dataset is given.
func DefaultCodeProblems() []CodeProblem {
	return []CodeProblem{
		{
			ID:              "running-sum",
			Description:     "Compute the running sum of a list of integers.",
			HelperRole:      "Write a helper that adds two integers.",
			MainRole:        "Use the helper to build the running sum list.",
			HelperSignature: "add(a, b)",
			MainSignature:   "running_sum(nums)",
			Tests: []rewards.TestCase{
				{Input: "[1, 2, 3, 4]", Expected: "[1, 3, 6, 10]"},
				{Input: "[]", Expected: "[]"},
				{Input: "[5]", Expected: "[5]"},
			},
		},
		{
			ID:              "count-vowel-words",
			Description:     "Count the words in a sentence that start with a vowel.",
			HelperRole:      "Write a helper that checks if a word starts with a vowel.",
			MainRole:        "Use the helper to count matching words.",
			HelperSignature: "starts_with_vowel(word)",
			MainSignature:   "count_vowel_words(sentence)",
			Tests: []rewards.TestCase{
				{Input: "'an old owl ate'", Expected: "3"},
				{Input: "''", Expected: "0"},
			},
		},
		{
			ID:              "max-pair-product",
			Description:     "Find the maximum product of any two distinct elements.",
			HelperRole:      "Write a helper that multiplies two numbers.",
			MainRole:        "Use the helper to find the maximum pairwise product.",
			HelperSignature: "multiply(a, b)",
			MainSignature:   "max_pair_product(nums)",
			Tests: []rewards.TestCase{
				{Input: "[1, 5, 3, 2]", Expected: "15"},
				{Input: "[-4, -5, 1]", Expected: "20"},
			},
		},
	}
}

// CodeCollaborationTask runs two agents, a helper author and a main author,
// against a pool of code problems. Episodes are two turns long.
type CodeCollaborationTask struct {
	problems  []CodeProblem
	evaluator *rewards.LevelGatedEvaluator
	rng       *rand.Rand
	logger    *zap.Logger

	current    CodeProblem
	helperCode string
	mainCode   string
	turnCount  int
}

// NewCodeCollaborationTask creates the task over the given problem pool.
func NewCodeCollaborationTask(problems []CodeProblem, evaluator *rewards.LevelGatedEvaluator, rng *rand.Rand, logger *zap.Logger) (*CodeCollaborationTask, error) {
	if len(problems) == 0 {
		return nil, fmt.Errorf("code collaboration task requires at least one problem")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("code collaboration task requires an evaluator")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeCollaborationTask{
		problems:  problems,
		evaluator: evaluator,
		rng:       rng,
		logger:    logger,
	}, nil
}

// Config returns the two-turn episode shape.
func (t *CodeCollaborationTask) Config() Config {
	return Config{MaxTurns: 2, MinTurns: 2, Type: "code_collaboration"}
}

// Reset samples a problem and starts a fresh episode.
func (t *CodeCollaborationTask) Reset() Observation {
	t.current = t.problems[t.rng.Intn(len(t.problems))]
	t.helperCode = ""
	t.mainCode = ""
	t.turnCount = 0

	description := fmt.Sprintf("%s\n\nHelper function signature: %s\nMain function signature: %s\nThe main function must use the helper.",
		t.current.Description, t.current.HelperSignature, t.current.MainSignature)

	t.logger.Debug("code episode reset", zap.String("problem", t.current.ID))
	return Observation{
		TaskDescription: description,
		Topic:           t.current.ID,
		Objective:       t.current.Description,
		Metadata:        map[string]string{"problem_id": t.current.ID},
	}
}

// Step records one agent's code for sequential execution.
func (t *CodeCollaborationTask) Step(agentID int, agentRole, action string) bool {
	t.turnCount++
	switch agentID {
	case 0:
		t.helperCode = ExtractCode(action)
	case 1:
		t.mainCode = ExtractCode(action)
	}
	return t.turnCount >= 2
}

// Complete reports whether both turns happened.
func (t *CodeCollaborationTask) Complete(traj *trajectory.Trajectory) bool {
	return traj.Len() >= 2
}

// Evaluate extracts both functions from the trajectory and runs the
// level-gated evaluator against the current problem's tests.
func (t *CodeCollaborationTask) Evaluate(ctx context.Context, traj *trajectory.Trajectory) (rewards.Result, error) {
	helperCode, mainCode := "", ""
	for _, turn := range traj.Turns {
		switch turn.AgentID {
		case 0:
			helperCode = ExtractCode(turn.Action)
		case 1:
			mainCode = ExtractCode(turn.Action)
		}
	}

	result := t.evaluator.Evaluate(ctx, rewards.CodeSubmission{
		HelperCode: helperCode,
		MainCode:   mainCode,
		HelperName: t.current.HelperName(),
		MainName:   t.current.MainName(),
		Tests:      t.current.Tests,
	})
	return result, nil
}

// Team builds the helper and main agents for this task.
func (t *CodeCollaborationTask) Team() []*agent.Agent {
	helper := agent.New(0, "helper",
		"Write a correct, minimal helper function.",
		"You are a helper agent writing auxiliary functions for code problems. "+
			"Write ONLY the helper function implementation in Python. Do not include any tests or examples.")
	main := agent.New(1, "main",
		"Write the main function, building on the helper.",
		"You are the main agent completing code solutions. Use the helper function your teammate wrote. "+
			"Write ONLY the main function implementation in Python. Do not include tests or examples.")
	return []*agent.Agent{helper, main}
}

// ExtractCode strips markdown fences from an agent response, preferring a
// ```python block, then any fenced block, then the raw text.
func ExtractCode(text string) string {
	if idx := strings.Index(text, "```python"); idx != -1 {
		rest := text[idx+len("```python"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(text, "```"); idx != -1 {
		rest := text[idx+len("```"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(text)
}
