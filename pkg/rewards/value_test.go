package rewards

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEstimatorWeightsDimensions(t *testing.T) {
	e, err := NewValueEstimator(stubJudge{verdict: `{"quality": 9, "collaboration": 7, "efficiency": 5, "reasoning": {"quality": "clean"}}`}, nil)
	require.NoError(t, err)

	result := e.Evaluate(context.Background(), "Turn 1 | writer: code", "code_review")
	assert.InDelta(t, 9.0, result.Components["quality"], 1e-9)
	assert.InDelta(t, 7.0, result.Components["collaboration"], 1e-9)
	assert.InDelta(t, 5.0, result.Components["efficiency"], 1e-9)
	assert.InDelta(t, 9*0.4+7*0.4+5*0.2, result.Total, 1e-9)
}

func TestValueEstimatorExtractsEmbeddedJSON(t *testing.T) {
	e, err := NewValueEstimator(stubJudge{verdict: "Here is my verdict:\n{\"quality\": 12, \"efficiency\": -3}\nDone."}, nil)
	require.NoError(t, err)

	result := e.Evaluate(context.Background(), "transcript", "code_review")
	assert.InDelta(t, 10.0, result.Components["quality"], 1e-9, "scores clamp to 0-10")
	assert.InDelta(t, 0.0, result.Components["efficiency"], 1e-9)
	assert.InDelta(t, 5.0, result.Components["collaboration"], 1e-9, "missing dimension stays neutral")
}

func TestValueEstimatorNeutralOnGarbage(t *testing.T) {
	e, err := NewValueEstimator(stubJudge{verdict: "no json here"}, nil)
	require.NoError(t, err)

	result := e.Evaluate(context.Background(), "transcript", "code_review")
	assert.InDelta(t, neutralScore, result.Total, 1e-9)
	assert.InDelta(t, neutralScore, result.Components["quality"], 1e-9)
}

func TestValueEstimatorPromptMatchesTaskType(t *testing.T) {
	prompt := buildValuePrompt("Turn 1 | writer: draft", "story_writing")
	assert.Contains(t, prompt, "story_writing task")
	assert.Contains(t, prompt, "yes, and")
	assert.Contains(t, prompt, "Turn 1 | writer: draft")

	fallback := buildValuePrompt("t", "something_else")
	assert.Contains(t, fallback, "handle edge cases")
}

func TestNewValueEstimatorRequiresJudge(t *testing.T) {
	_, err := NewValueEstimator(nil, nil)
	assert.Error(t, err)
}
