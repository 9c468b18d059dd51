// Package llm is the boundary to the language-model completion service: the
// sampling interface used by beam search, the judge interface used by
// evaluators and behavior extraction, plus caching, rate limiting, and retry
// wrappers around both.
package llm

import (
	"context"
	"errors"
)

// ErrCallFailed marks an external completion-service failure after retries
// are exhausted. Round orchestration treats it as fatal for the episode.
var ErrCallFailed = errors.New("llm call failed")

// SampleRequest carries everything the sampling layer needs to produce one
// candidate action for an agent.
type SampleRequest struct {
	Role         string
	SystemPrompt string
	Conversation string
}

// Sampler produces a single completion for an agent given the rendered
// conversation context. Beam search issues width*branch concurrent calls per
// round; implementations must be safe for concurrent use.
type Sampler interface {
	Sample(ctx context.Context, req SampleRequest) (string, error)
}

// Judge answers free-form evaluation prompts with text. Used by the weighted
// reward evaluator, the cooperation refinement step, and behavior extraction.
type Judge interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}
