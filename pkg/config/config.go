// Package config aggregates the runtime configuration loaded from the config
// file, environment, and flags.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/Aerovity/Orchestry/pkg/observability"
	"github.com/Aerovity/Orchestry/pkg/rewards"
	"github.com/Aerovity/Orchestry/pkg/trainer"
)

// Config is the full runtime configuration.
type Config struct {
	Logger  observability.LoggerConfig `mapstructure:"logger"`
	LLM     LLMConfig                  `mapstructure:"llm"`
	Trainer trainer.Config             `mapstructure:"trainer"`
	Task    TaskConfig                 `mapstructure:"task"`
	Budget  BudgetConfig               `mapstructure:"budget"`
}

// LLMConfig selects the completion provider used for sampling and judging.
type LLMConfig struct {
	Provider          string `mapstructure:"provider"`
	Model             string `mapstructure:"model"`
	BaseURL           string `mapstructure:"base_url"`
	APIKey            string `mapstructure:"api_key"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// TaskConfig selects and shapes the training task.
type TaskConfig struct {
	Type         string `mapstructure:"type"`
	Domain       string `mapstructure:"domain"`
	MaxTurns     int    `mapstructure:"max_turns"`
	ProblemsFile string `mapstructure:"problems_file"`
	PythonPath   string `mapstructure:"python_path"`
	UseJudge     bool   `mapstructure:"use_judge"`
}

// BudgetConfig caps estimated API spend. Zero disables the ceiling.
type BudgetConfig struct {
	MaxUSD float64 `mapstructure:"max_usd"`
}

// SetDefaults installs the default configuration values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "orchestry")

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.model", "llama3.2")
	v.SetDefault("llm.requests_per_minute", 0)

	v.SetDefault("trainer.beam_width", 10)
	v.SetDefault("trainer.k_samples", 5)
	v.SetDefault("trainer.exploration_rate", 0.1)
	v.SetDefault("trainer.max_history", 10)
	v.SetDefault("trainer.learning_frequency", 10)
	v.SetDefault("trainer.save_frequency", 5)
	v.SetDefault("trainer.save_dir", "runs")
	v.SetDefault("trainer.top_percentile", 0.2)
	v.SetDefault("trainer.pricing_tier", "haiku")

	v.SetDefault("task.type", "code_collaboration")
	v.SetDefault("task.domain", "materials_science")
	v.SetDefault("task.max_turns", 15)
	v.SetDefault("task.use_judge", true)

	v.SetDefault("budget.max_usd", 0.0)
}

// Validate checks the cross-field constraints flags and files can violate.
func (c *Config) Validate() error {
	switch c.Task.Type {
	case "code_collaboration", "code_review", "research_lab":
	default:
		return fmt.Errorf("unknown task type %q (want code_collaboration, code_review, or research_lab)", c.Task.Type)
	}
	if c.Trainer.BeamWidth < 0 || c.Trainer.KSamples < 0 {
		return fmt.Errorf("beam width and sample count must be non-negative")
	}
	if c.Trainer.PricingTier != "" && !rewards.KnownPricingTier(c.Trainer.PricingTier) {
		return fmt.Errorf("unknown pricing tier %q (want haiku or sonnet)", c.Trainer.PricingTier)
	}
	if c.Trainer.ExplorationRate > 1 {
		return fmt.Errorf("exploration rate %.2f exceeds 1.0", c.Trainer.ExplorationRate)
	}
	if c.Budget.MaxUSD < 0 {
		return fmt.Errorf("budget ceiling must be non-negative")
	}
	return nil
}
