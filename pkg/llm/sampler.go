package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/XiaoConstantine/dspy-go/pkg/core"
	"github.com/XiaoConstantine/dspy-go/pkg/modules"
	"go.uber.org/zap"
)

// PredictSampler generates agent turns through a dspy-go Predict module. It
// uses the process-wide default LLM configured at startup.
type PredictSampler struct {
	predictor *modules.Predict
	logger    *zap.Logger
}

// NewPredictSampler builds the sampling module.
func NewPredictSampler(logger *zap.Logger) *PredictSampler {
	if logger == nil {
		logger = zap.NewNop()
	}

	signature := core.NewSignature(
		[]core.InputField{
			{Field: core.Field{Name: "system_prompt", Description: "The agent's role, goal, and learned behaviors"}},
			{Field: core.Field{Name: "conversation", Description: "The task and the conversation so far"}},
		},
		[]core.OutputField{
			{Field: core.Field{Name: "response", Description: "The agent's next contribution"}},
		},
	).WithInstruction(`You are one member of a team of agents collaborating on a shared task.
Act according to your system prompt. Read the conversation so far and produce
your next contribution: concrete, building on teammates' work, no meta-commentary
about the collaboration itself. Output only the contribution.`)

	return &PredictSampler{
		predictor: modules.NewPredict(signature),
		logger:    logger,
	}
}

// Sample produces one completion for the request.
func (s *PredictSampler) Sample(ctx context.Context, req SampleRequest) (string, error) {
	result, err := s.predictor.Process(ctx, map[string]interface{}{
		"system_prompt": req.SystemPrompt,
		"conversation":  req.Conversation,
	})
	if err != nil {
		return "", fmt.Errorf("%w: sampling for role %q: %v", ErrCallFailed, req.Role, err)
	}

	response := strings.TrimSpace(fmt.Sprintf("%v", result["response"]))
	if response == "" {
		return "", fmt.Errorf("%w: empty completion for role %q", ErrCallFailed, req.Role)
	}

	s.logger.Debug("sampled completion",
		zap.String("role", req.Role),
		zap.Int("response_chars", len(response)))

	return response, nil
}
