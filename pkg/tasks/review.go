package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/Aerovity/Orchestry/pkg/agent"
	"github.com/Aerovity/Orchestry/pkg/rewards"
	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

// ReviewProblem is one coding exercise for the write/review/refactor cycle.
type ReviewProblem struct {
	Difficulty   string   `json:"difficulty"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	FunctionName string   `json:"function_name"`
	Requirements []string `json:"requirements"`
	TestCases    []string `json:"test_cases"`
}

// DefaultReviewProblems is the built-in problem bank, easy to medium.
func DefaultReviewProblems() []ReviewProblem {
	return []ReviewProblem{
		{
			Difficulty:   "easy",
			Name:         "Reverse String",
			Description:  "Write a function that reverses a string.",
			FunctionName: "reverse_string",
			Requirements: []string{
				"Function should be called reverse_string(s)",
				"Should handle empty strings",
				"Should preserve Unicode characters",
				"Include docstring and type hints",
			},
			TestCases: []string{
				"reverse_string('hello') == 'olleh'",
				"reverse_string('') == ''",
				"reverse_string('a') == 'a'",
			},
		},
		{
			Difficulty:   "easy",
			Name:         "Is Palindrome",
			Description:  "Write a function that checks if a string is a palindrome.",
			FunctionName: "is_palindrome",
			Requirements: []string{
				"Function should be called is_palindrome(s)",
				"Should be case-insensitive",
				"Should ignore spaces and punctuation",
				"Include docstring and type hints",
			},
			TestCases: []string{
				"is_palindrome('racecar') == True",
				"is_palindrome('hello') == False",
				"is_palindrome('A man a plan a canal Panama') == True",
			},
		},
		{
			Difficulty:   "easy",
			Name:         "FizzBuzz",
			Description:  "Write a function that returns FizzBuzz sequence up to n.",
			FunctionName: "fizzbuzz",
			Requirements: []string{
				"Function should be called fizzbuzz(n)",
				"Return list of strings",
				`Multiples of 3: "Fizz", multiples of 5: "Buzz", both: "FizzBuzz"`,
				"Include docstring and type hints",
			},
			TestCases: []string{
				"fizzbuzz(5) == ['1', '2', 'Fizz', '4', 'Buzz']",
				"fizzbuzz(15)[-1] == 'FizzBuzz'",
			},
		},
		{
			Difficulty:   "medium",
			Name:         "Two Sum",
			Description:  "Find two numbers in array that sum to target.",
			FunctionName: "two_sum",
			Requirements: []string{
				"Function should be called two_sum(nums, target)",
				"Return indices of the two numbers",
				"Assume exactly one solution exists",
				"Optimize for time complexity",
				"Include docstring and type hints",
			},
			TestCases: []string{
				"two_sum([2,7,11,15], 9) == [0,1]",
				"two_sum([3,2,4], 6) == [1,2]",
			},
		},
		{
			Difficulty:   "medium",
			Name:         "Binary Search",
			Description:  "Implement binary search on sorted array.",
			FunctionName: "binary_search",
			Requirements: []string{
				"Function should be called binary_search(arr, target)",
				"Return index if found, -1 if not found",
				"Must use binary search (O(log n))",
				"Handle edge cases (empty array, single element)",
				"Include docstring and type hints",
			},
			TestCases: []string{
				"binary_search([1,2,3,4,5], 3) == 2",
				"binary_search([1,2,3,4,5], 6) == -1",
				"binary_search([], 1) == -1",
			},
		},
		{
			Difficulty:   "medium",
			Name:         "Valid Parentheses",
			Description:  "Check if string has valid parentheses pairing.",
			FunctionName: "is_valid_parentheses",
			Requirements: []string{
				"Function should be called is_valid_parentheses(s)",
				"Handle (), {}, []",
				"Return True if valid, False otherwise",
				"Use stack-based approach",
				"Include docstring and type hints",
			},
			TestCases: []string{
				"is_valid_parentheses('()') == True",
				"is_valid_parentheses('()[]{}') == True",
				"is_valid_parentheses('(]') == False",
			},
		},
	}
}

const (
	reviewMaxTurns = 15
	reviewMinTurns = 3
)

// completionSignals end a review episode once the minimum cycle has run and
// any of them shows up in the last three actions.
var completionSignals = []string{"final code", "looks good", "approved", "complete"}

// Heuristic reward weights for the review episode.
const (
	reviewWeightQuality       = 0.4
	reviewWeightCollaboration = 0.4
	reviewWeightEfficiency    = 0.2
)

// CodeReviewTask cycles three agents over a coding problem: a writer drafts a
// solution, a reviewer critiques it, and a refactorer applies the critique.
// Rewards score the final code, the review loop, and the turn count. An
// optional value estimator replaces the built-in heuristics with judge scores.
type CodeReviewTask struct {
	problems  []ReviewProblem
	estimator *rewards.ValueEstimator
	rng       *rand.Rand
	logger    *zap.Logger

	current   ReviewProblem
	state     reviewState
	history   []string
	turnCount int
}

// reviewState is the code-centric episode state derived from agent actions.
type reviewState struct {
	initialCode   string
	currentCode   string
	feedbackCount int
	iterations    int
}

// NewCodeReviewTask creates the task over the given problem pool. A nil
// estimator falls back to heuristic scoring.
func NewCodeReviewTask(problems []ReviewProblem, estimator *rewards.ValueEstimator, rng *rand.Rand, logger *zap.Logger) (*CodeReviewTask, error) {
	if len(problems) == 0 {
		return nil, fmt.Errorf("code review task requires at least one problem")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeReviewTask{
		problems:  problems,
		estimator: estimator,
		rng:       rng,
		logger:    logger,
	}, nil
}

// Config returns the review episode shape.
func (t *CodeReviewTask) Config() Config {
	return Config{MaxTurns: reviewMaxTurns, MinTurns: reviewMinTurns, Type: "code_review"}
}

// Reset samples a problem and starts a fresh episode.
func (t *CodeReviewTask) Reset() Observation {
	t.current = t.problems[t.rng.Intn(len(t.problems))]
	t.state = reviewState{}
	t.history = nil
	t.turnCount = 0

	var reqs, tests strings.Builder
	for _, req := range t.current.Requirements {
		fmt.Fprintf(&reqs, "  - %s\n", req)
	}
	for _, tc := range t.current.TestCases {
		fmt.Fprintf(&tests, "  - %s\n", tc)
	}

	description := fmt.Sprintf(`Code Review Task: %s

Problem: %s
Difficulty: %s

Requirements:
%s
Test Cases:
%s
Instructions:
- Code Writer: Write initial implementation
- Code Reviewer: Review code, identify issues, suggest improvements
- Code Refactorer: Implement the improvements
- Continue until code quality is high or max turns reached`,
		t.current.Name, t.current.Description, t.current.Difficulty,
		reqs.String(), tests.String())

	t.logger.Debug("code review episode reset",
		zap.String("problem", t.current.Name),
		zap.String("difficulty", t.current.Difficulty))
	return Observation{
		TaskDescription: description,
		Topic:           t.current.Name,
		Objective:       t.current.Description,
		Metadata: map[string]string{
			"problem_name": t.current.Name,
			"difficulty":   t.current.Difficulty,
		},
	}
}

// Step records one agent's action for sequential execution.
func (t *CodeReviewTask) Step(agentID int, agentRole, action string) bool {
	t.turnCount++
	t.history = append(t.history, action)
	applyReviewAction(&t.state, agentID, action)

	if t.turnCount >= reviewMaxTurns {
		return true
	}
	if t.turnCount < reviewMinTurns {
		return false
	}
	return hasCompletionSignal(t.history)
}

// applyReviewAction folds one action into the review state. The writer sets
// the code, the reviewer adds feedback, and the refactorer replaces the code
// only when the action carries a python fence.
func applyReviewAction(s *reviewState, agentID int, action string) {
	switch agentID {
	case 0:
		code := ExtractCode(action)
		if s.initialCode == "" {
			s.initialCode = code
		}
		s.currentCode = code
	case 1:
		s.feedbackCount++
	case 2:
		if strings.Contains(action, "```python") {
			s.currentCode = ExtractCode(action)
			s.iterations++
		}
	}
}

func hasCompletionSignal(actions []string) bool {
	start := len(actions) - 3
	if start < 0 {
		start = 0
	}
	recent := strings.ToLower(strings.Join(actions[start:], " "))
	for _, phrase := range completionSignals {
		if strings.Contains(recent, phrase) {
			return true
		}
	}
	return false
}

// Complete reports whether the trajectory has run its course: max turns, or
// a completion signal in the last three actions once the minimum cycle ran.
func (t *CodeReviewTask) Complete(traj *trajectory.Trajectory) bool {
	if traj.Len() >= reviewMaxTurns {
		return true
	}
	if traj.Len() < reviewMinTurns {
		return false
	}
	actions := make([]string, 0, len(traj.Turns))
	for _, turn := range traj.Turns {
		actions = append(actions, turn.Action)
	}
	return hasCompletionSignal(actions)
}

// Evaluate rebuilds the review state from the trajectory and scores the
// episode. With an estimator configured the judge scores all three
// dimensions; otherwise the heuristics below apply.
func (t *CodeReviewTask) Evaluate(ctx context.Context, traj *trajectory.Trajectory) (rewards.Result, error) {
	if t.estimator != nil {
		return t.estimator.Evaluate(ctx, traj.Conversation(), "code_review"), nil
	}

	var state reviewState
	for _, turn := range traj.Turns {
		applyReviewAction(&state, turn.AgentID, turn.Action)
	}

	quality := t.scoreQuality(state)
	collaboration := scoreCollaboration(state, traj)
	efficiency := scoreEfficiency(traj.Len())
	total := quality*reviewWeightQuality +
		collaboration*reviewWeightCollaboration +
		efficiency*reviewWeightEfficiency

	return rewards.Result{
		Total: total,
		Components: map[string]float64{
			"quality":       quality,
			"collaboration": collaboration,
			"efficiency":    efficiency,
		},
	}, nil
}

// scoreQuality rates the final code 0-10 on surface signals: docstring, type
// hints, the required function name, comment density, length, and growth over
// the initial draft.
func (t *CodeReviewTask) scoreQuality(s reviewState) float64 {
	if s.currentCode == "" {
		return 0
	}

	score := 5.0
	if strings.Contains(s.currentCode, `"""`) || strings.Contains(s.currentCode, "'''") {
		score++
	}
	if strings.Contains(s.currentCode, "->") ||
		strings.Contains(s.currentCode, ": str") ||
		strings.Contains(s.currentCode, ": int") {
		score++
	}
	if t.current.FunctionName != "" && strings.Contains(s.currentCode, "def "+t.current.FunctionName) {
		score++
	}
	if n := strings.Count(s.currentCode, "#"); n >= 1 && n <= 5 {
		score += 0.5
	}
	lines := 0
	for _, line := range strings.Split(s.currentCode, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	if lines >= 5 && lines <= 30 {
		score++
	}
	if s.initialCode != "" && len(s.currentCode) > len(s.initialCode) {
		score += 0.5
	}

	if score > 10 {
		score = 10
	}
	return score
}

// scoreCollaboration rates the review loop 0-10: refactor iterations,
// feedback volume, and whether the agents referenced each other's work.
func scoreCollaboration(s reviewState, traj *trajectory.Trajectory) float64 {
	score := 5.0
	score += minFloat(2.0, float64(s.iterations)*0.5)
	score += minFloat(2.0, float64(s.feedbackCount)*0.5)

	transcript := strings.ToLower(traj.Conversation())
	for _, word := range []string{"previous", "earlier", "mentioned", "suggested", "building on"} {
		if strings.Contains(transcript, word) {
			score++
			break
		}
	}

	if score > 10 {
		score = 10
	}
	return score
}

// scoreEfficiency rates the turn count 0-10. Under three turns means no real
// review happened; past twelve the loop is spinning.
func scoreEfficiency(turns int) float64 {
	switch {
	case turns < reviewMinTurns:
		return 3.0
	case turns <= 9:
		return 10.0
	case turns <= 12:
		return 8.0
	case turns <= reviewMaxTurns:
		return 6.0
	default:
		return 4.0
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Team builds the writer, reviewer, and refactorer agents.
func (t *CodeReviewTask) Team() []*agent.Agent {
	writer := agent.New(0, "code_writer",
		"Write a correct, well-documented initial implementation.",
		"You are a code writer drafting Python solutions to coding problems. "+
			"Write the full implementation in a ```python code block with a docstring and type hints.")
	reviewer := agent.New(1, "code_reviewer",
		"Find concrete issues and suggest specific improvements.",
		"You are a code reviewer. Read the latest code, point out bugs, missing edge cases, "+
			"and style problems, and suggest specific improvements. Say 'looks good' only when the code needs no further work.")
	refactorer := agent.New(2, "code_refactorer",
		"Apply the reviewer's feedback to produce improved code.",
		"You are a code refactorer. Apply the reviewer's suggestions to the latest code and "+
			"return the full improved implementation in a ```python code block.")
	return []*agent.Agent{writer, reviewer, refactorer}
}
