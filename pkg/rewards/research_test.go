package rewards

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResearchScores(t *testing.T) {
	text := `SCIENTIFIC_RIGOR: 8.5
NOVELTY: 7
COMPLETENESS: 6.0
COLLABORATION: 9
FEASIBILITY: 5.5`

	scores, parsed := parseResearchScores(text)
	assert.Equal(t, 5, parsed)
	assert.InDelta(t, 8.5, scores["scientific_rigor"], 1e-9)
	assert.InDelta(t, 7.0, scores["novelty"], 1e-9)
	assert.InDelta(t, 5.5, scores["feasibility"], 1e-9)
}

func TestParseResearchScoresPartial(t *testing.T) {
	scores, parsed := parseResearchScores("NOVELTY: 9.0\nsome chatter\n")
	assert.Equal(t, 1, parsed)
	assert.InDelta(t, 9.0, scores["novelty"], 1e-9)
	// Unparsed dimensions keep the neutral default.
	assert.InDelta(t, neutralScore, scores["completeness"], 1e-9)
}

func TestParseResearchScoresGarbage(t *testing.T) {
	_, parsed := parseResearchScores("I think this research is great!")
	assert.Zero(t, parsed)
}

func TestWeighScores(t *testing.T) {
	result := weighScores(map[string]float64{
		"scientific_rigor": 8,
		"novelty":          6,
		"completeness":     10,
		"collaboration":    4,
		"feasibility":      2,
	})
	// 0.25*8 + 0.25*6 + 0.20*10 + 0.15*4 + 0.15*2
	assert.InDelta(t, 6.4, result.Total, 1e-9)
}

type scriptedJudge struct {
	verdicts []string
	errs     []error
	call     int
}

func (s *scriptedJudge) Evaluate(ctx context.Context, prompt string) (string, error) {
	i := s.call
	s.call++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.verdicts) {
		return s.verdicts[i], nil
	}
	return "", errors.New("no more verdicts")
}

func TestWeightedEvaluatorRetriesThenParses(t *testing.T) {
	judge := &scriptedJudge{
		verdicts: []string{"", "SCIENTIFIC_RIGOR: 8\nNOVELTY: 8\nCOMPLETENESS: 8\nCOLLABORATION: 8\nFEASIBILITY: 8"},
		errs:     []error{errors.New("transient"), nil},
	}
	e, err := NewWeightedEvaluator(judge, nil)
	require.NoError(t, err)

	result := e.Evaluate(context.Background(), ResearchArtifacts{Topic: "t", Objective: "o"})
	assert.InDelta(t, 8.0, result.Total, 1e-9)
	assert.Equal(t, 2, judge.call)
}

func TestWeightedEvaluatorFallsBackToNeutral(t *testing.T) {
	judge := &scriptedJudge{
		verdicts: []string{"nope", "still nope", "nothing"},
	}
	e, err := NewWeightedEvaluator(judge, nil)
	require.NoError(t, err)

	result := e.Evaluate(context.Background(), ResearchArtifacts{})
	assert.InDelta(t, neutralScore, result.Total, 1e-9)
	assert.InDelta(t, neutralScore, result.Components["novelty"], 1e-9)
}

func TestWeightedEvaluatorRequiresJudge(t *testing.T) {
	_, err := NewWeightedEvaluator(nil, nil)
	assert.Error(t, err)
}

func TestBuildResearchPromptIncludesArtifacts(t *testing.T) {
	prompt := buildResearchPrompt(ResearchArtifacts{
		Topic:      "protein folding",
		Objective:  "predict structures",
		Literature: []string{"paper A"},
		Hypotheses: []string{"h1", "h2"},
		PaperDraft: "# Draft",
	})
	assert.Contains(t, prompt, "protein folding")
	assert.Contains(t, prompt, "- paper A")
	assert.Contains(t, prompt, "2. h2")
	assert.Contains(t, prompt, "SCIENTIFIC_RIGOR")
	assert.Contains(t, prompt, "No experiments designed")
}
