package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Aerovity/Orchestry/pkg/backoff"
	"github.com/Aerovity/Orchestry/pkg/behaviors"
	"github.com/Aerovity/Orchestry/pkg/config"
	"github.com/Aerovity/Orchestry/pkg/llm"
	"github.com/Aerovity/Orchestry/pkg/observability"
	"github.com/Aerovity/Orchestry/pkg/rewards"
	"github.com/Aerovity/Orchestry/pkg/tasks"
	"github.com/Aerovity/Orchestry/pkg/trainer"
)

// newTrainCmd creates the `train` command.
func newTrainCmd() *cobra.Command {
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Run training episodes for a team of collaborating agents",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags onto their viper keys so flags override the config
			// file and environment.
			bindings := map[string]string{
				"task.type":                "task",
				"task.domain":              "domain",
				"task.problems_file":       "problems",
				"trainer.beam_width":       "beam-width",
				"trainer.k_samples":        "k-samples",
				"trainer.exploration_rate": "exploration",
				"trainer.save_dir":         "save-dir",
				"budget.max_usd":           "budget",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-unmarshal now that the flags are bound.
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			episodes, err := cmd.Flags().GetInt("episodes")
			if err != nil {
				return err
			}

			if _, err := llm.Configure(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.APIKey); err != nil {
				return err
			}
			logger.Info("llm configured",
				zap.String("provider", cfg.LLM.Provider),
				zap.String("model", cfg.LLM.Model))

			rpm := cfg.LLM.RequestsPerMinute
			sampler := llm.NewResilientSampler(llm.NewPredictSampler(logger), rpm, backoff.Standard, logger)
			judge := llm.NewCachedJudge(
				llm.NewResilientJudge(llm.NewPredictJudge(logger), rpm, backoff.Standard, logger),
				logger)

			library := behaviors.NewLibrary(judge, logger)

			var budget *rewards.BudgetTracker
			if cfg.Budget.MaxUSD > 0 {
				budget = rewards.NewBudgetTracker(cfg.Budget.MaxUSD, logger)
			}

			task, err := buildTask(&cfg, judge, logger)
			if err != nil {
				return err
			}

			tr, err := trainer.New(task, sampler, library, budget, judge, cfg.Trainer, logger)
			if err != nil {
				return err
			}

			summary, trainErr := tr.Train(ctx, episodes)
			printSummary(summary)

			if trainErr != nil {
				if errors.Is(trainErr, rewards.ErrBudgetExceeded) {
					fmt.Println("Training stopped early: budget ceiling reached.")
				}
				return trainErr
			}
			return nil
		},
	}

	trainCmd.Flags().Int("episodes", 20, "number of training episodes to run")
	trainCmd.Flags().String("task", "code_collaboration", "task type: code_collaboration, code_review, or research_lab")
	trainCmd.Flags().String("domain", "materials_science", "research domain for research_lab tasks")
	trainCmd.Flags().String("problems", "", "path to a JSON problems file for code_collaboration")
	trainCmd.Flags().Int("beam-width", 10, "max trajectories kept per search round")
	trainCmd.Flags().Int("k-samples", 5, "completions sampled per trajectory per round")
	trainCmd.Flags().Float64("exploration", 0.1, "epsilon for epsilon-greedy trajectory selection")
	trainCmd.Flags().String("save-dir", "runs", "directory for run artifacts")
	trainCmd.Flags().Float64("budget", 0, "spend ceiling in USD (0 disables)")

	return trainCmd
}

// buildTask constructs the configured task with its reward evaluator.
func buildTask(cfg *config.Config, judge llm.Judge, logger *zap.Logger) (tasks.Task, error) {
	if !cfg.Task.UseJudge {
		judge = nil
	}

	switch cfg.Task.Type {
	case "code_collaboration":
		problems := tasks.DefaultCodeProblems()
		if cfg.Task.ProblemsFile != "" {
			loaded, err := tasks.LoadCodeProblems(cfg.Task.ProblemsFile)
			if err != nil {
				return nil, err
			}
			problems = loaded
		}
		evaluator := rewards.NewLevelGatedEvaluator(cfg.Task.PythonPath, 0, judge, logger)
		return tasks.NewCodeCollaborationTask(problems, evaluator, nil, logger)

	case "code_review":
		var estimator *rewards.ValueEstimator
		if judge != nil {
			var err error
			estimator, err = rewards.NewValueEstimator(judge, logger)
			if err != nil {
				return nil, err
			}
		}
		return tasks.NewCodeReviewTask(tasks.DefaultReviewProblems(), estimator, nil, logger)

	case "research_lab":
		var weighted *rewards.WeightedEvaluator
		if judge != nil {
			var err error
			weighted, err = rewards.NewWeightedEvaluator(judge, logger)
			if err != nil {
				return nil, err
			}
		}
		return tasks.NewResearchLabTask(cfg.Task.Domain, cfg.Task.MaxTurns, weighted, nil, logger), nil

	default:
		return nil, fmt.Errorf("unknown task type %q", cfg.Task.Type)
	}
}

func printSummary(s trainer.Summary) {
	fmt.Printf("\nRun %s\n", s.RunID)
	fmt.Printf("  Episodes:       %d\n", s.TotalEpisodes)
	fmt.Printf("  Average reward: %.3f\n", s.AverageReward)
	fmt.Printf("  Best reward:    %.3f\n", s.BestReward)
	fmt.Printf("  Worst reward:   %.3f\n", s.WorstReward)
	fmt.Printf("  Final-10 avg:   %.3f\n", s.Final10Avg)
	fmt.Printf("  Reward stddev:  %.3f\n", s.RewardStd)
	if s.BudgetStats != nil {
		fmt.Printf("  Spend:          $%.2f of $%.2f (%.0f%%)\n",
			s.BudgetStats.TotalSpent, s.BudgetStats.MaxBudget, s.BudgetStats.PercentUsed)
	}
	fmt.Printf("  Artifacts:      %s\n", s.SaveDirectory)
}
