package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EpisodesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestry_episodes_total",
		Help: "Total training episodes completed",
	})

	EpisodeReward = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "orchestry_episode_reward",
		Help: "Reward of the selected trajectory per episode",
	})

	EpisodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestry_episode_duration_seconds",
		Help:    "Wall-clock duration of one beam-search episode",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	SampleCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestry_sample_calls_total",
		Help: "Completion-service sampling calls by agent role",
	}, []string{"role"})

	JudgeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestry_judge_cache_hits_total",
		Help: "Judge evaluations served from the fingerprint cache",
	})

	BudgetSpent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orchestry_budget_spent_usd",
		Help: "Cumulative estimated API spend in USD",
	})

	BeamSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orchestry_beam_size",
		Help: "Trajectories in the beam after the latest prune",
	})
)
