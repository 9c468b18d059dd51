// Package trainer runs the training loop: beam-search episodes over agent
// teams, group-relative selection of the best trajectory, and periodic
// behavior extraction back into the agents' prompts.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Aerovity/Orchestry/pkg/agent"
	"github.com/Aerovity/Orchestry/pkg/behaviors"
	"github.com/Aerovity/Orchestry/pkg/llm"
	"github.com/Aerovity/Orchestry/pkg/observability"
	"github.com/Aerovity/Orchestry/pkg/optimizer"
	"github.com/Aerovity/Orchestry/pkg/rewards"
	"github.com/Aerovity/Orchestry/pkg/tasks"
	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

// minEpisodesForExtraction gates behavior updates until there is enough
// history to call anything a pattern.
const minEpisodesForExtraction = 5

// Config tunes the training loop.
type Config struct {
	BeamWidth         int     `mapstructure:"beam_width"`
	KSamples          int     `mapstructure:"k_samples"`
	ExplorationRate   float64 `mapstructure:"exploration_rate"`
	MaxHistory        int     `mapstructure:"max_history"`
	LearningFrequency int     `mapstructure:"learning_frequency"`
	SaveFrequency     int     `mapstructure:"save_frequency"`
	SaveDir           string  `mapstructure:"save_dir"`
	TopPercentile     float64 `mapstructure:"top_percentile"`
	PricingTier       string  `mapstructure:"pricing_tier"`
	Seed              int64   `mapstructure:"seed"`
}

func (c *Config) applyDefaults() {
	if c.BeamWidth <= 0 {
		c.BeamWidth = 10
	}
	if c.KSamples <= 0 {
		c.KSamples = 5
	}
	// Zero exploration is a valid (pure greedy) setting, so only clamp
	// negatives here; the CLI supplies the 0.1 default.
	if c.ExplorationRate < 0 {
		c.ExplorationRate = 0
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 10
	}
	if c.LearningFrequency <= 0 {
		c.LearningFrequency = 10
	}
	if c.SaveFrequency <= 0 {
		c.SaveFrequency = 5
	}
	if c.SaveDir == "" {
		c.SaveDir = "runs"
	}
	if c.TopPercentile <= 0 || c.TopPercentile > 1 {
		c.TopPercentile = behaviors.DefaultTopPercentile
	}
	if c.PricingTier == "" {
		c.PricingTier = "haiku"
	}
}

// Trainer orchestrates episodes for one task and its agent team.
type Trainer struct {
	task    tasks.Task
	agents  []*agent.Agent
	sampler llm.Sampler
	library *behaviors.Library
	budget  *rewards.BudgetTracker
	cache   *llm.CachedJudge
	cfg     Config
	rng     *rand.Rand
	logger  *zap.Logger

	runID    string
	saveDir  string
	episodes []*trajectory.Trajectory

	reportedCacheHits int
}

// Summary aggregates a finished (or aborted) training run.
type Summary struct {
	RunID          string               `json:"run_id"`
	TotalEpisodes  int                  `json:"total_episodes"`
	AverageReward  float64              `json:"average_reward"`
	BestReward     float64              `json:"best_reward"`
	WorstReward    float64              `json:"worst_reward"`
	Final10Avg     float64              `json:"final_10_avg"`
	RewardStd      float64              `json:"reward_std"`
	SaveDirectory  string               `json:"save_directory"`
	JudgeCacheHits int                  `json:"judge_cache_hits"`
	AgentBehaviors map[string]int       `json:"agent_behaviors"`
	BudgetStats    *rewards.BudgetStats `json:"budget_stats,omitempty"`
}

// New creates a trainer. library, budget, and cache are optional; the agent
// team comes from the task.
func New(task tasks.Task, sampler llm.Sampler, library *behaviors.Library, budget *rewards.BudgetTracker, cache *llm.CachedJudge, cfg Config, logger *zap.Logger) (*Trainer, error) {
	if task == nil {
		return nil, fmt.Errorf("trainer requires a task")
	}
	if sampler == nil {
		return nil, fmt.Errorf("trainer requires a sampler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Zero means "use the default"; negative values are caller bugs.
	if cfg.BeamWidth < 0 {
		return nil, fmt.Errorf("beam width must be non-negative, got %d", cfg.BeamWidth)
	}
	if cfg.KSamples < 0 {
		return nil, fmt.Errorf("sample count must be non-negative, got %d", cfg.KSamples)
	}
	cfg.applyDefaults()
	if !rewards.KnownPricingTier(cfg.PricingTier) {
		return nil, fmt.Errorf("unknown pricing tier %q (want haiku or sonnet)", cfg.PricingTier)
	}

	team := task.Team()
	if len(team) == 0 {
		return nil, fmt.Errorf("task provides no agents")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	runID := uuid.NewString()
	saveDir := filepath.Join(cfg.SaveDir, fmt.Sprintf("run_%s_%s", time.Now().Format("2006-01-02_15-04-05"), runID[:8]))

	logger.Info("trainer initialized",
		zap.String("run_id", runID),
		zap.Int("agents", len(team)),
		zap.Int("beam_width", cfg.BeamWidth),
		zap.Int("k_samples", cfg.KSamples),
		zap.String("save_dir", saveDir))

	return &Trainer{
		task:    task,
		agents:  team,
		sampler: sampler,
		library: library,
		budget:  budget,
		cache:   cache,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		logger:  logger,
		runID:   runID,
		saveDir: saveDir,
	}, nil
}

// RunID returns this run's identifier.
func (t *Trainer) RunID() string { return t.runID }

// SaveDir returns where this run persists its artifacts.
func (t *Trainer) SaveDir() string { return t.saveDir }

// Episodes returns the selected trajectory of every finished episode.
func (t *Trainer) Episodes() []*trajectory.Trajectory { return t.episodes }

// Train runs the full loop. Episodes completed before an error (budget
// exhaustion, cancellation, dead completion service) are persisted before the
// error is returned alongside the partial summary.
func (t *Trainer) Train(ctx context.Context, numEpisodes int) (Summary, error) {
	t.logger.Info("starting training", zap.Int("episodes", numEpisodes))

	var runErr error
	for episode := 1; episode <= numEpisodes; episode++ {
		best, reward, err := t.RunEpisode(ctx, episode)
		if err != nil {
			runErr = fmt.Errorf("episode %d: %w", episode, err)
			break
		}

		t.episodes = append(t.episodes, best)
		observability.EpisodesTotal.Inc()
		observability.EpisodeReward.Observe(reward)
		if t.budget != nil {
			observability.BudgetSpent.Set(t.budget.TotalSpent())
		}
		if t.cache != nil {
			hits, _, _ := t.cache.CacheStats()
			if delta := hits - t.reportedCacheHits; delta > 0 {
				observability.JudgeCacheHits.Add(float64(delta))
				t.reportedCacheHits = hits
			}
		}

		t.logger.Info("episode complete",
			zap.Int("episode", episode),
			zap.Float64("reward", reward),
			zap.Int("turns", best.Len()))

		if episode%t.cfg.LearningFrequency == 0 {
			t.updateAgentBehaviors(ctx)
		}
		if episode%t.cfg.SaveFrequency == 0 {
			if err := t.saveCheckpoint(episode); err != nil {
				t.logger.Warn("checkpoint save failed", zap.Error(err))
			}
		}
	}

	if err := t.saveFinalResults(); err != nil {
		t.logger.Warn("failed to save final results", zap.Error(err))
	}

	summary := t.summary()
	if runErr != nil {
		if errors.Is(runErr, rewards.ErrBudgetExceeded) {
			t.logger.Warn("training stopped by budget ceiling", zap.Error(runErr))
		}
		return summary, runErr
	}

	t.logger.Info("training finished",
		zap.Int("episodes", summary.TotalEpisodes),
		zap.Float64("avg_reward", summary.AverageReward),
		zap.Float64("best_reward", summary.BestReward))
	return summary, nil
}

// RunEpisode runs one beam-search episode and returns the selected
// trajectory with its reward. The returned trajectory has rewards assigned.
func (t *Trainer) RunEpisode(ctx context.Context, episodeNum int) (*trajectory.Trajectory, float64, error) {
	start := time.Now()
	obs := t.task.Reset()
	maxTurns := t.task.Config().MaxTurns

	initial := trajectory.New(obs.TaskDescription, maxTurns)
	initial.Metadata = map[string]string{
		"episode":   fmt.Sprintf("%d", episodeNum),
		"topic":     obs.Topic,
		"objective": obs.Objective,
	}

	beam := trajectory.NewBeam(t.cfg.BeamWidth)
	beam.Add(initial, 0)

	for turn := 0; turn < maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		ag := t.agents[turn%len(t.agents)]
		newBeam, err := t.expandRound(ctx, beam, ag)
		if err != nil {
			return nil, 0, err
		}

		newBeam.Prune()
		beam = newBeam
		observability.BeamSize.Set(float64(beam.Len()))

		if beam.AllDone() {
			t.logger.Debug("all trajectories complete", zap.Int("turn", turn+1))
			break
		}
	}

	best, reward, err := t.selectBest(ctx, beam)
	if err != nil {
		return nil, 0, err
	}

	observability.EpisodeDuration.Observe(time.Since(start).Seconds())
	return best, reward, nil
}

// expandRound fans every live trajectory out into k sampled continuations,
// with a hard barrier before scoring. One failed call cancels the siblings
// and aborts the episode. Done trajectories carry forward unchanged.
func (t *Trainer) expandRound(ctx context.Context, beam *trajectory.Beam, ag *agent.Agent) (*trajectory.Beam, error) {
	newBeam := trajectory.NewBeam(t.cfg.BeamWidth)
	entries := beam.Entries()

	type slot struct {
		parent  *trajectory.Trajectory
		context string
	}
	var live []slot
	for _, entry := range entries {
		if entry.Trajectory.Done {
			newBeam.Add(entry.Trajectory, entry.Trajectory.TotalReward)
			continue
		}
		live = append(live, slot{
			parent:  entry.Trajectory,
			context: entry.Trajectory.ContextForAgent(t.cfg.MaxHistory),
		})
	}
	if len(live) == 0 {
		return newBeam, nil
	}

	systemPrompt := ag.SystemPrompt()
	samples := make([][]string, len(live))
	for i := range samples {
		samples[i] = make([]string, t.cfg.KSamples)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range live {
		for j := 0; j < t.cfg.KSamples; j++ {
			i, j := i, j
			g.Go(func() error {
				response, err := t.sampler.Sample(gctx, llm.SampleRequest{
					Role:         ag.Role,
					SystemPrompt: systemPrompt,
					Conversation: live[i].context,
				})
				if err != nil {
					return err
				}
				samples[i][j] = response
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sampling round for role %q: %w", ag.Role, err)
	}
	observability.SampleCallsTotal.WithLabelValues(ag.Role).Add(float64(len(live) * t.cfg.KSamples))

	for i, s := range live {
		for _, response := range samples[i] {
			if t.budget != nil {
				cost, err := rewards.EstimateCost(t.cfg.PricingTier,
					rewards.EstimateTokens(systemPrompt)+rewards.EstimateTokens(s.context),
					rewards.EstimateTokens(response))
				if err != nil {
					// An unpriceable call must not slip past the ceiling.
					return nil, fmt.Errorf("estimating sample cost: %w", err)
				}
				if err := t.budget.TrackCall(cost, "sample:"+ag.Role); err != nil {
					return nil, err
				}
			}

			child := s.parent.Clone()
			child.AddTurn(ag.ID, ag.Role, s.context, response, nil)
			if t.task.Complete(child) {
				child.Done = true
			}

			// Provisional score: longer partial trajectories rank higher.
			// Real evaluation happens once the episode ends.
			newBeam.Add(child, float64(child.Len()))
		}
	}
	return newBeam, nil
}

// selectBest evaluates every surviving trajectory, computes group-relative
// advantages, and picks epsilon-greedily.
func (t *Trainer) selectBest(ctx context.Context, beam *trajectory.Beam) (*trajectory.Trajectory, float64, error) {
	finals := beam.Trajectories()
	if len(finals) == 0 {
		return nil, 0, fmt.Errorf("beam is empty after search")
	}

	returns := make([]float64, len(finals))
	for i, traj := range finals {
		result, err := t.task.Evaluate(ctx, traj)
		if err != nil {
			return nil, 0, fmt.Errorf("evaluating trajectory %d: %w", i, err)
		}
		if err := traj.SetRewards(result.Total, result.Components); err != nil {
			return nil, 0, err
		}
		returns[i] = result.Total
	}

	advantages := optimizer.ComputeAdvantages(returns)
	idx, err := optimizer.SelectBest(advantages, t.cfg.ExplorationRate, t.rng)
	if err != nil {
		return nil, 0, err
	}

	stats := optimizer.Summarize(returns, advantages)
	t.logger.Debug("trajectory selected",
		zap.Int("index", idx),
		zap.Float64("reward", returns[idx]),
		zap.Float64("group_mean", stats.MeanReturn),
		zap.Float64("group_std", stats.StdReturn))

	return finals[idx], returns[idx], nil
}

// updateAgentBehaviors mines recent episodes for successful patterns and
// splices them into the agents.
func (t *Trainer) updateAgentBehaviors(ctx context.Context) {
	if t.library == nil {
		return
	}
	if len(t.episodes) < minEpisodesForExtraction {
		t.logger.Info("not enough episodes for behavior extraction",
			zap.Int("episodes", len(t.episodes)))
		return
	}

	extracted, err := t.library.Extract(ctx, t.episodes, agent.Roles(t.agents), t.task.Config().Type, t.cfg.TopPercentile)
	if err != nil {
		t.logger.Warn("behavior extraction failed", zap.Error(err))
		return
	}

	for _, ag := range t.agents {
		roleBehaviors, ok := extracted[ag.Role]
		if !ok {
			continue
		}
		categories := make([]string, 0, len(roleBehaviors))
		for category := range roleBehaviors {
			categories = append(categories, category)
		}
		sort.Strings(categories)

		var flattened []string
		for _, category := range categories {
			flattened = append(flattened, roleBehaviors[category]...)
		}
		ag.AddBehaviors(flattened)
	}

	t.logger.Info("agent behaviors updated", zap.Int("roles", len(extracted)))
}

func (t *Trainer) summary() Summary {
	summary := Summary{
		RunID:          t.runID,
		TotalEpisodes:  len(t.episodes),
		SaveDirectory:  t.saveDir,
		AgentBehaviors: make(map[string]int, len(t.agents)),
	}
	for _, ag := range t.agents {
		summary.AgentBehaviors[ag.Role] = ag.BehaviorCount()
	}
	if t.cache != nil {
		hits, _, _ := t.cache.CacheStats()
		summary.JudgeCacheHits = hits
	}
	if t.budget != nil {
		stats := t.budget.Stats()
		summary.BudgetStats = &stats
	}
	if len(t.episodes) == 0 {
		return summary
	}

	returns := make([]float64, len(t.episodes))
	summary.BestReward = t.episodes[0].TotalReward
	summary.WorstReward = t.episodes[0].TotalReward
	for i, ep := range t.episodes {
		returns[i] = ep.TotalReward
		if ep.TotalReward > summary.BestReward {
			summary.BestReward = ep.TotalReward
		}
		if ep.TotalReward < summary.WorstReward {
			summary.WorstReward = ep.TotalReward
		}
	}
	summary.AverageReward = optimizer.Mean(returns)
	summary.RewardStd = optimizer.StdDev(returns)

	final := returns
	if len(final) > 10 {
		final = final[len(final)-10:]
	}
	summary.Final10Avg = optimizer.Mean(final)
	return summary
}

// BestEpisode returns the highest-reward episode so far, or nil.
func (t *Trainer) BestEpisode() *trajectory.Trajectory {
	var best *trajectory.Trajectory
	for _, ep := range t.episodes {
		if best == nil || ep.TotalReward > best.TotalReward {
			best = ep
		}
	}
	return best
}

func (t *Trainer) ensureSaveDir() error {
	return os.MkdirAll(t.saveDir, 0755)
}
