package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aerovity/Orchestry/pkg/backoff"
)

type fakeJudge struct {
	calls   atomic.Int64
	verdict string
	err     error
}

func (f *fakeJudge) Evaluate(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.verdict, nil
}

type fakeSampler struct {
	calls    atomic.Int64
	failFor  int64
	response string
}

func (f *fakeSampler) Sample(ctx context.Context, req SampleRequest) (string, error) {
	n := f.calls.Add(1)
	if n <= f.failFor {
		return "", ErrCallFailed
	}
	return f.response, nil
}

func TestCachedJudgeDedupesIdenticalPrompts(t *testing.T) {
	inner := &fakeJudge{verdict: "SCORE: 7"}
	cached := NewCachedJudge(inner, nil)

	for i := 0; i < 3; i++ {
		verdict, err := cached.Evaluate(context.Background(), "rate this transcript")
		require.NoError(t, err)
		assert.Equal(t, "SCORE: 7", verdict)
	}

	assert.Equal(t, int64(1), inner.calls.Load(), "identical prompts cost one upstream call")

	hits, misses, size := cached.CacheStats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, size)
}

func TestCachedJudgeDistinctPrompts(t *testing.T) {
	inner := &fakeJudge{verdict: "ok"}
	cached := NewCachedJudge(inner, nil)

	_, err := cached.Evaluate(context.Background(), "prompt a")
	require.NoError(t, err)
	_, err = cached.Evaluate(context.Background(), "prompt b")
	require.NoError(t, err)

	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachedJudgeDoesNotCacheFailures(t *testing.T) {
	inner := &fakeJudge{err: ErrCallFailed}
	cached := NewCachedJudge(inner, nil)

	_, err := cached.Evaluate(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrCallFailed)

	inner.err = nil
	inner.verdict = "recovered"
	verdict, err := cached.Evaluate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", verdict)
}

func TestResilientSamplerRetriesThenSucceeds(t *testing.T) {
	inner := &fakeSampler{failFor: 2, response: "hello"}
	strategy := backoff.Strategy{Delays: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}}
	s := NewResilientSampler(inner, 0, strategy, nil)

	out, err := s.Sample(context.Background(), SampleRequest{Role: "coder"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, int64(3), inner.calls.Load())
}

func TestResilientSamplerExhaustsSchedule(t *testing.T) {
	inner := &fakeSampler{failFor: 100}
	strategy := backoff.Strategy{Delays: []time.Duration{time.Millisecond, time.Millisecond}}
	s := NewResilientSampler(inner, 0, strategy, nil)

	_, err := s.Sample(context.Background(), SampleRequest{Role: "coder"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCallFailed))
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestResilientSamplerHonorsCancellation(t *testing.T) {
	inner := &fakeSampler{failFor: 100}
	strategy := backoff.Strategy{Delays: []time.Duration{time.Hour}}
	s := NewResilientSampler(inner, 0, strategy, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Sample(ctx, SampleRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
