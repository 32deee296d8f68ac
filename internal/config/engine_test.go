package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadEngineConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		cfg := LoadEngineConfig()

		assert.Equal(t, 0.80, cfg.ApprovalThreshold)
		assert.Equal(t, 2, cfg.PromotionThreshold)
		assert.Equal(t, "5", cfg.PromotionBonus.String())
		assert.Equal(t, 10*time.Second, cfg.ScoringTimeout)
		assert.Equal(t, "@every 1m", cfg.SweepSchedule)
		assert.Equal(t, "postgres", cfg.Store)
	})

	t.Run("environment overrides", func(t *testing.T) {
		viper.Reset()
		t.Setenv("APPROVAL_THRESHOLD", "0.9")
		t.Setenv("PROMOTION_BONUS", "0")
		t.Setenv("SCORING_TIMEOUT", "3s")
		BindEnv()

		cfg := LoadEngineConfig()
		assert.Equal(t, 0.9, cfg.ApprovalThreshold)
		assert.True(t, cfg.PromotionBonus.IsZero())
		assert.Equal(t, 3*time.Second, cfg.ScoringTimeout)
	})

	t.Run("out of range values fall back", func(t *testing.T) {
		viper.Reset()
		viper.Set("engine.approval_threshold", 1.5)
		viper.Set("engine.promotion_threshold", 0)
		viper.Set("engine.promotion_bonus", "-1")

		cfg := LoadEngineConfig()
		assert.Equal(t, 0.80, cfg.ApprovalThreshold)
		assert.Equal(t, 2, cfg.PromotionThreshold)
		assert.Equal(t, "5", cfg.PromotionBonus.String())
	})
}

func TestDefaults(t *testing.T) {
	viper.Reset()
	assert.Equal(t, LoadEngineConfig().PromotionThreshold, Defaults().PromotionThreshold)
}
