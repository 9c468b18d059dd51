package rewards

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperSrc = `def double(x):
    return x * 2
`

const mainSrc = `def process(x):
    return double(x) + 1
`

const mainNoHelperSrc = `def process(x):
    return x * 2 + 1
`

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestPythonFunctionNames(t *testing.T) {
	names, hasError := pythonFunctionNames(helperSrc)
	require.False(t, hasError)
	assert.Equal(t, []string{"double"}, names)

	names, _ = pythonFunctionNames("x = 1\n")
	assert.Empty(t, names)

	_, hasError = pythonFunctionNames("def broken(:\n")
	assert.True(t, hasError)
}

func TestFirstFunctionName(t *testing.T) {
	assert.Equal(t, "double", FirstFunctionName(helperSrc))
	assert.Equal(t, "", FirstFunctionName("x = 1"))
}

func TestEvaluateStructureFailureScoresZero(t *testing.T) {
	e := NewLevelGatedEvaluator("", 0, nil, nil)

	result := e.Evaluate(context.Background(), CodeSubmission{
		HelperCode: "x = 1",
		MainCode:   mainSrc,
	})

	assert.Zero(t, result.Total)
	assert.Zero(t, result.Components["structure"])
	assert.Zero(t, result.Components["syntax"])
}

func TestEvaluateWrongFunctionNameFailsStructure(t *testing.T) {
	e := NewLevelGatedEvaluator("", 0, nil, nil)

	result := e.Evaluate(context.Background(), CodeSubmission{
		HelperCode: helperSrc,
		MainCode:   mainSrc,
		HelperName: "triple",
	})

	assert.Zero(t, result.Total)
}

func TestEvaluateFullCooperation(t *testing.T) {
	requirePython(t)
	e := NewLevelGatedEvaluator("", 0, nil, nil)

	result := e.Evaluate(context.Background(), CodeSubmission{
		HelperCode: helperSrc,
		MainCode:   mainSrc,
		HelperName: "double",
		MainName:   "process",
		Tests: []TestCase{
			{Input: "1", Expected: "3"},
			{Input: "5", Expected: "11"},
		},
	})

	assert.InDelta(t, 0.25, result.Components["structure"], 1e-9)
	assert.InDelta(t, 0.25, result.Components["syntax"], 1e-9)
	assert.InDelta(t, 0.25, result.Components["tests"], 1e-9)
	assert.InDelta(t, 0.25, result.Components["cooperation"], 1e-9)
	assert.InDelta(t, 1.0, result.Total, 1e-9)
}

func TestEvaluateNoHelperUsageZeroCooperation(t *testing.T) {
	requirePython(t)
	e := NewLevelGatedEvaluator("", 0, nil, nil)

	result := e.Evaluate(context.Background(), CodeSubmission{
		HelperCode: helperSrc,
		MainCode:   mainNoHelperSrc,
		Tests: []TestCase{
			{Input: "1", Expected: "3"},
		},
	})

	assert.InDelta(t, 0.25, result.Components["tests"], 1e-9)
	assert.Zero(t, result.Components["cooperation"])
	assert.InDelta(t, 0.75, result.Total, 1e-9)
}

func TestEvaluatePartialPassRate(t *testing.T) {
	requirePython(t)
	e := NewLevelGatedEvaluator("", 0, nil, nil)

	result := e.Evaluate(context.Background(), CodeSubmission{
		HelperCode: helperSrc,
		MainCode:   mainSrc,
		Tests: []TestCase{
			{Input: "1", Expected: "3"},
			{Input: "1", Expected: "999"},
		},
	})

	assert.InDelta(t, 0.125, result.Components["tests"], 1e-9)
}

type stubJudge struct{ verdict string }

func (s stubJudge) Evaluate(ctx context.Context, prompt string) (string, error) {
	return s.verdict, nil
}

func TestJudgeCooperationParsing(t *testing.T) {
	e := NewLevelGatedEvaluator("", 0, stubJudge{verdict: "0.7"}, nil)
	assert.InDelta(t, 0.7, e.judgeCooperation(context.Background(), helperSrc, mainSrc), 1e-9)

	e = NewLevelGatedEvaluator("", 0, stubJudge{verdict: "no number here"}, nil)
	assert.InDelta(t, 0.5, e.judgeCooperation(context.Background(), helperSrc, mainSrc), 1e-9)
}
