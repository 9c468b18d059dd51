package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "code_collaboration", cfg.Task.Type)
	assert.Equal(t, "haiku", cfg.Trainer.PricingTier)
}

func TestValidateTaskType(t *testing.T) {
	cfg := validConfig()
	for _, taskType := range []string{"code_collaboration", "code_review", "research_lab"} {
		cfg.Task.Type = taskType
		assert.NoError(t, cfg.Validate(), taskType)
	}

	cfg.Task.Type = "poetry_slam"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownPricingTier(t *testing.T) {
	cfg := validConfig()
	cfg.Trainer.PricingTier = "opus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pricing tier")

	cfg.Trainer.PricingTier = "sonnet"
	assert.NoError(t, cfg.Validate())
}

func TestValidateSearchShape(t *testing.T) {
	cfg := validConfig()
	cfg.Trainer.BeamWidth = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Trainer.KSamples = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Trainer.ExplorationRate = 1.5
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Budget.MaxUSD = -2
	assert.Error(t, cfg.Validate())
}
