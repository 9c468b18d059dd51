package rewards

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Aerovity/Orchestry/pkg/llm"
)

// Dimension weights for the research total. They sum to 1, so a total stays
// on the same 0-10 scale as the dimensions.
const (
	weightRigor         = 0.25
	weightNovelty       = 0.25
	weightCompleteness  = 0.20
	weightCollaboration = 0.15
	weightFeasibility   = 0.15
)

// neutralScore is the per-dimension fallback when the judge is unusable.
const neutralScore = 5.0

const judgeAttempts = 3

// ResearchArtifacts is the material the weighted evaluator judges: the
// phase outputs accumulated by the research task plus the full transcript.
type ResearchArtifacts struct {
	Topic       string
	Objective   string
	Transcript  string
	Literature  []string
	Hypotheses  []string
	Experiments []string
	Analyses    []string
	PaperDraft  string
}

// WeightedEvaluator scores research output on five 0-10 dimensions through an
// LLM judge and combines them with fixed weights.
type WeightedEvaluator struct {
	judge  llm.Judge
	logger *zap.Logger
}

// NewWeightedEvaluator creates the evaluator. The judge is required.
func NewWeightedEvaluator(judge llm.Judge, logger *zap.Logger) (*WeightedEvaluator, error) {
	if judge == nil {
		return nil, fmt.Errorf("weighted evaluator requires a judge")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeightedEvaluator{judge: judge, logger: logger}, nil
}

// Evaluate asks the judge for dimension scores, retrying on failure or
// unparseable output, and falls back to the neutral vector when every attempt
// fails. The returned total is the weighted combination on the 0-10 scale.
func (e *WeightedEvaluator) Evaluate(ctx context.Context, artifacts ResearchArtifacts) Result {
	prompt := buildResearchPrompt(artifacts)

	for attempt := 1; attempt <= judgeAttempts; attempt++ {
		verdict, err := e.judge.Evaluate(ctx, prompt)
		if err != nil {
			e.logger.Warn("research judge call failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			if !sleepCtx(ctx, time.Second) {
				break
			}
			continue
		}

		scores, parsed := parseResearchScores(verdict)
		if parsed == 0 {
			e.logger.Warn("research judge returned no parseable scores",
				zap.Int("attempt", attempt))
			if !sleepCtx(ctx, time.Second) {
				break
			}
			continue
		}

		result := weighScores(scores)
		e.logger.Info("research judged",
			zap.Float64("rigor", scores["scientific_rigor"]),
			zap.Float64("novelty", scores["novelty"]),
			zap.Float64("completeness", scores["completeness"]),
			zap.Float64("collaboration", scores["collaboration"]),
			zap.Float64("feasibility", scores["feasibility"]),
			zap.Float64("total", result.Total))
		return result
	}

	e.logger.Warn("research judge unusable, using neutral fallback scores")
	return neutralResult()
}

func weighScores(scores map[string]float64) Result {
	total := weightRigor*scores["scientific_rigor"] +
		weightNovelty*scores["novelty"] +
		weightCompleteness*scores["completeness"] +
		weightCollaboration*scores["collaboration"] +
		weightFeasibility*scores["feasibility"]

	components := make(map[string]float64, len(scores))
	for k, v := range scores {
		components[k] = v
	}
	return Result{Total: total, Components: components}
}

func neutralResult() Result {
	return Result{
		Total: neutralScore,
		Components: map[string]float64{
			"scientific_rigor": neutralScore,
			"novelty":          neutralScore,
			"completeness":     neutralScore,
			"collaboration":    neutralScore,
			"feasibility":      neutralScore,
		},
	}
}

// parseResearchScores reads "DIMENSION: value" lines. Unparsed dimensions keep
// the neutral default; the second return is how many lines parsed.
func parseResearchScores(text string) (map[string]float64, int) {
	scores := map[string]float64{
		"scientific_rigor": neutralScore,
		"novelty":          neutralScore,
		"completeness":     neutralScore,
		"collaboration":    neutralScore,
		"feasibility":      neutralScore,
	}

	labels := map[string]string{
		"SCIENTIFIC_RIGOR:": "scientific_rigor",
		"NOVELTY:":          "novelty",
		"COMPLETENESS:":     "completeness",
		"COLLABORATION:":    "collaboration",
		"FEASIBILITY:":      "feasibility",
	}

	parsed := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for label, key := range labels {
			if !strings.Contains(line, label) {
				continue
			}
			parts := strings.Split(line, ":")
			value, err := strconv.ParseFloat(strings.TrimSpace(parts[len(parts)-1]), 64)
			if err != nil {
				continue
			}
			scores[key] = value
			parsed++
		}
	}
	return scores, parsed
}

func buildResearchPrompt(a ResearchArtifacts) string {
	var sb strings.Builder

	sb.WriteString("You are an expert scientific reviewer evaluating AI-generated research.\n\n")
	sb.WriteString(fmt.Sprintf("**Research Topic:** %s\n\n", a.Topic))
	sb.WriteString(fmt.Sprintf("**Objective:** %s\n\n", a.Objective))
	sb.WriteString("## Research Process\n\n")

	sb.WriteString("### Literature Review\n")
	sb.WriteString(bulletsOr(a.Literature, "No literature reviewed"))
	sb.WriteString("\n\n### Hypotheses Generated\n")
	sb.WriteString(numberedOr(a.Hypotheses, "No hypotheses generated"))
	sb.WriteString("\n\n### Experimental Designs\n")
	sb.WriteString(numberedOr(a.Experiments, "No experiments designed"))
	sb.WriteString("\n\n### Data Analyses\n")
	sb.WriteString(bulletsOr(a.Analyses, "No analyses completed"))
	sb.WriteString("\n\n### Paper Draft\n")
	if a.PaperDraft != "" {
		sb.WriteString(a.PaperDraft)
	} else {
		sb.WriteString("No paper draft")
	}

	sb.WriteString("\n\n---\n\n## Full Trajectory\n")
	sb.WriteString(a.Transcript)

	sb.WriteString(`

---

## Evaluation Task

Rate this research on 5 dimensions (0-10 scale):

**1. Scientific Rigor (0-10)** - testable hypotheses, controls, sound methodology, appropriate analysis.
**2. Novelty (0-10)** - ideas beyond the existing literature, creative rather than incremental.
**3. Completeness (0-10)** - all phases done (lit review, hypothesis, experiment, analysis, paper), each in sufficient detail.
**4. Collaboration Quality (0-10)** - agents build on each other's work with clear information flow.
**5. Feasibility (0-10)** - realistic experiments, reasonable resources and timelines.

## Output Format

Respond ONLY with scores in this exact format (no other text):

SCIENTIFIC_RIGOR: [0-10 score]
NOVELTY: [0-10 score]
COMPLETENESS: [0-10 score]
COLLABORATION: [0-10 score]
FEASIBILITY: [0-10 score]

Provide decimal scores (e.g., 7.5) for precision.
`)

	return sb.String()
}

func bulletsOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n\n")
}

func numberedOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return strings.Join(lines, "\n\n")
}

// sleepCtx waits d or until the context is cancelled; false means cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
