package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Aerovity/Orchestry/pkg/llm"
)

// Default weights for the three-dimension trajectory value estimate.
const (
	weightQuality         = 0.4
	weightValueCollab     = 0.4
	weightValueEfficiency = 0.2
)

// ValueEstimator scores a whole conversation transcript on quality,
// collaboration, and efficiency (0-10 each) through an LLM judge. The
// criteria wording adapts to the task type.
type ValueEstimator struct {
	judge  llm.Judge
	logger *zap.Logger
}

// NewValueEstimator creates the estimator. The judge is required; wrap it in
// a CachedJudge so repeated transcripts cost one call.
func NewValueEstimator(judge llm.Judge, logger *zap.Logger) (*ValueEstimator, error) {
	if judge == nil {
		return nil, fmt.Errorf("value estimator requires a judge")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValueEstimator{judge: judge, logger: logger}, nil
}

// valueCriteria holds the per-dimension judging questions for one task type.
type valueCriteria struct {
	quality       string
	collaboration string
	efficiency    string
}

func criteriaForTask(taskType string) valueCriteria {
	switch taskType {
	case "documentation":
		return valueCriteria{
			quality:       "Is the documentation clear, complete, and accurate? Are there good examples?",
			collaboration: "Did agents complement each other's contributions effectively?",
			efficiency:    "Was the documentation completed efficiently?",
		}
	case "story_writing":
		return valueCriteria{
			quality:       "Is the story creative, coherent, and engaging? Does it have a clear structure?",
			collaboration: `Did agents use "yes, and" thinking? Did they build on each other's ideas?`,
			efficiency:    "Was the story completed in a reasonable number of turns?",
		}
	default: // code_review and anything unrecognized
		return valueCriteria{
			quality:       "Is the final code correct, readable, and efficient? Does it handle edge cases?",
			collaboration: "Did agents build on each other's contributions? Did they reference and improve previous work?",
			efficiency:    "Was the solution reached quickly without unnecessary back-and-forth?",
		}
	}
}

// Evaluate asks the judge for the three dimension scores over the transcript.
// A failed call or unparseable verdict degrades to the neutral 5.0 vector.
func (e *ValueEstimator) Evaluate(ctx context.Context, transcript, taskType string) Result {
	prompt := buildValuePrompt(transcript, taskType)

	verdict, err := e.judge.Evaluate(ctx, prompt)
	if err != nil {
		e.logger.Warn("value judge call failed, using neutral scores", zap.Error(err))
		return neutralValueResult()
	}

	scores, ok := parseValueScores(verdict)
	if !ok {
		e.logger.Warn("value judge verdict unparseable, using neutral scores")
		return neutralValueResult()
	}

	total := scores["quality"]*weightQuality +
		scores["collaboration"]*weightValueCollab +
		scores["efficiency"]*weightValueEfficiency

	e.logger.Debug("trajectory valued",
		zap.Float64("quality", scores["quality"]),
		zap.Float64("collaboration", scores["collaboration"]),
		zap.Float64("efficiency", scores["efficiency"]),
		zap.Float64("total", total))

	return Result{Total: total, Components: scores}
}

func neutralValueResult() Result {
	return Result{
		Total: neutralScore,
		Components: map[string]float64{
			"quality":       neutralScore,
			"collaboration": neutralScore,
			"efficiency":    neutralScore,
		},
	}
}

func buildValuePrompt(transcript, taskType string) string {
	criteria := criteriaForTask(taskType)

	return fmt.Sprintf(`You are evaluating a multi-agent collaboration on a %s task.

%s

Please evaluate this multi-agent conversation on the following criteria:

1. **Quality (0-10)**: %s

2. **Collaboration (0-10)**: %s

3. **Efficiency (0-10)**: %s

Provide your evaluation as a JSON object with exactly this structure:
{
  "quality": <score 0-10>,
  "collaboration": <score 0-10>,
  "efficiency": <score 0-10>,
  "reasoning": {
    "quality": "<brief explanation>",
    "collaboration": "<brief explanation>",
    "efficiency": "<brief explanation>"
  }
}

Be critical but fair. Use the full 0-10 range. Return ONLY the JSON object, no other text.`,
		taskType, transcript, criteria.quality, criteria.collaboration, criteria.efficiency)
}

// parseValueScores extracts the JSON object from the verdict. Missing
// dimensions keep the neutral default; values are clamped to 0-10.
func parseValueScores(text string) (map[string]float64, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, false
	}

	scores := map[string]float64{
		"quality":       neutralScore,
		"collaboration": neutralScore,
		"efficiency":    neutralScore,
	}
	for key := range scores {
		field, ok := raw[key]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(field, &v); err != nil {
			continue
		}
		if v < 0 {
			v = 0
		}
		if v > 10 {
			v = 10
		}
		scores[key] = v
	}
	return scores, true
}
