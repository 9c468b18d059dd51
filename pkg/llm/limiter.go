package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Aerovity/Orchestry/pkg/backoff"
)

// ResilientSampler wraps a sampler with request-per-minute throttling and a
// retry schedule. All beam-search traffic goes through one instance so the
// limit holds across concurrent rounds.
type ResilientSampler struct {
	inner    Sampler
	limiter  *rate.Limiter
	strategy backoff.Strategy
	logger   *zap.Logger
}

// NewResilientSampler throttles inner to rpm requests per minute with a burst
// of one. rpm <= 0 disables throttling.
func NewResilientSampler(inner Sampler, rpm int, strategy backoff.Strategy, logger *zap.Logger) *ResilientSampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return &ResilientSampler{
		inner:    inner,
		limiter:  limiter,
		strategy: strategy,
		logger:   logger,
	}
}

// Sample waits for a rate token, then retries the inner sampler on failure.
func (s *ResilientSampler) Sample(ctx context.Context, req SampleRequest) (string, error) {
	var response string

	err := backoff.RetryWithCallback(ctx, s.strategy, func(ctx context.Context, attempt int) error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		response, err = s.inner.Sample(ctx, req)
		return err
	}, func(attempt int, err error, delay time.Duration) {
		s.logger.Warn("sample attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	})
	if err != nil {
		return "", err
	}
	return response, nil
}

// ResilientJudge applies the same throttle-and-retry policy to a judge.
type ResilientJudge struct {
	inner    Judge
	limiter  *rate.Limiter
	strategy backoff.Strategy
	logger   *zap.Logger
}

// NewResilientJudge throttles inner to rpm requests per minute. rpm <= 0
// disables throttling.
func NewResilientJudge(inner Judge, rpm int, strategy backoff.Strategy, logger *zap.Logger) *ResilientJudge {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return &ResilientJudge{
		inner:    inner,
		limiter:  limiter,
		strategy: strategy,
		logger:   logger,
	}
}

// Evaluate waits for a rate token, then retries the inner judge on failure.
func (j *ResilientJudge) Evaluate(ctx context.Context, prompt string) (string, error) {
	var verdict string

	err := backoff.RetryWithCallback(ctx, j.strategy, func(ctx context.Context, attempt int) error {
		if j.limiter != nil {
			if err := j.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		verdict, err = j.inner.Evaluate(ctx, prompt)
		return err
	}, func(attempt int, err error, delay time.Duration) {
		j.logger.Warn("judge attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	})
	if err != nil {
		return "", err
	}
	return verdict, nil
}
