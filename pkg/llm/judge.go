package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/XiaoConstantine/dspy-go/pkg/core"
	"github.com/XiaoConstantine/dspy-go/pkg/modules"
	"go.uber.org/zap"
)

// PredictJudge evaluates free-form prompts through a dspy-go Predict module.
type PredictJudge struct {
	predictor *modules.Predict
	logger    *zap.Logger
}

// NewPredictJudge builds the judge module.
func NewPredictJudge(logger *zap.Logger) *PredictJudge {
	if logger == nil {
		logger = zap.NewNop()
	}

	signature := core.NewSignature(
		[]core.InputField{
			{Field: core.Field{Name: "prompt", Description: "The evaluation request, including the transcript to assess"}},
		},
		[]core.OutputField{
			{Field: core.Field{Name: "assessment", Description: "The evaluation, in exactly the format the prompt asks for"}},
		},
	).WithInstruction(`You are a careful evaluator of multi-agent collaboration transcripts.
Follow the output format requested in the prompt exactly. Do not add prose
around the requested format.`)

	return &PredictJudge{
		predictor: modules.NewPredict(signature),
		logger:    logger,
	}
}

// Evaluate runs the judge once.
func (j *PredictJudge) Evaluate(ctx context.Context, prompt string) (string, error) {
	result, err := j.predictor.Process(ctx, map[string]interface{}{
		"prompt": prompt,
	})
	if err != nil {
		return "", fmt.Errorf("%w: judge evaluation: %v", ErrCallFailed, err)
	}

	assessment := strings.TrimSpace(fmt.Sprintf("%v", result["assessment"]))
	if assessment == "" {
		return "", fmt.Errorf("%w: empty judge assessment", ErrCallFailed)
	}
	return assessment, nil
}

// CachedJudge memoizes judge verdicts by prompt hash. Identical transcripts
// produce identical prompts, so repeated evaluation of the same trajectory
// costs one upstream call.
type CachedJudge struct {
	inner  Judge
	logger *zap.Logger

	mu     sync.Mutex
	cache  map[string]string
	hits   int
	misses int
}

// NewCachedJudge wraps a judge with an unbounded in-memory cache.
func NewCachedJudge(inner Judge, logger *zap.Logger) *CachedJudge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedJudge{
		inner:  inner,
		logger: logger,
		cache:  make(map[string]string),
	}
}

// Evaluate returns the cached verdict when the prompt was seen before,
// otherwise delegates and stores the result. Failed calls are not cached.
func (c *CachedJudge) Evaluate(ctx context.Context, prompt string) (string, error) {
	key := hashPrompt(prompt)

	c.mu.Lock()
	if verdict, ok := c.cache[key]; ok {
		c.hits++
		c.mu.Unlock()
		return verdict, nil
	}
	c.misses++
	c.mu.Unlock()

	verdict, err := c.inner.Evaluate(ctx, prompt)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[key] = verdict
	c.mu.Unlock()

	c.logger.Debug("judge cache miss", zap.String("key", key[:12]))
	return verdict, nil
}

// CacheStats reports hits, misses, and current cache size.
func (c *CachedJudge) CacheStats() (hits, misses, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.cache)
}

func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
