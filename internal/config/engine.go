package config

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EngineConfig carries the tunable rules of the task and settlement engine.
type EngineConfig struct {
	ApprovalThreshold  float64
	PromotionThreshold int
	PromotionBonus     decimal.Decimal

	ScoringURL     string
	ScoringTimeout time.Duration
	ScoreCacheTTL  time.Duration

	SweepSchedule string

	// Requests per second and burst allowed per account on lock/submit.
	RateLimit float64
	RateBurst int

	MediaDir string
	Store    string
}

func setEngineDefaults() {
	viper.SetDefault("engine.approval_threshold", 0.80)
	viper.SetDefault("engine.promotion_threshold", 2)
	viper.SetDefault("engine.promotion_bonus", "5.00")
	viper.SetDefault("scoring.url", "")
	viper.SetDefault("scoring.timeout", 10*time.Second)
	viper.SetDefault("scoring.cache_ttl", 24*time.Hour)
	viper.SetDefault("engine.sweep_schedule", "@every 1m")
	viper.SetDefault("engine.rate_limit", 2.0)
	viper.SetDefault("engine.rate_burst", 5)
	viper.SetDefault("media.dir", "./media/tasks")
	viper.SetDefault("engine.store", "postgres")
}

// BindEnv maps environment variables onto the engine keys.
func BindEnv() {
	viper.BindEnv("engine.approval_threshold", "APPROVAL_THRESHOLD")
	viper.BindEnv("engine.promotion_threshold", "PROMOTION_THRESHOLD")
	viper.BindEnv("engine.promotion_bonus", "PROMOTION_BONUS")
	viper.BindEnv("scoring.url", "SCORING_URL")
	viper.BindEnv("scoring.timeout", "SCORING_TIMEOUT")
	viper.BindEnv("scoring.cache_ttl", "SCORING_CACHE_TTL")
	viper.BindEnv("engine.sweep_schedule", "SWEEP_SCHEDULE")
	viper.BindEnv("engine.rate_limit", "LOCK_RATE_LIMIT")
	viper.BindEnv("engine.rate_burst", "LOCK_RATE_BURST")
	viper.BindEnv("media.dir", "MEDIA_DIR")
	viper.BindEnv("engine.store", "ENGINE_STORE")
}

// LoadEngineConfig reads the engine settings, falling back to defaults.
func LoadEngineConfig() *EngineConfig {
	setEngineDefaults()

	bonus, err := decimal.NewFromString(viper.GetString("engine.promotion_bonus"))
	if err != nil || bonus.IsNegative() {
		bonus = decimal.RequireFromString("5.00")
	}

	threshold := viper.GetFloat64("engine.approval_threshold")
	if threshold < 0 || threshold > 1 {
		threshold = 0.80
	}

	promotion := viper.GetInt("engine.promotion_threshold")
	if promotion <= 0 {
		promotion = 2
	}

	return &EngineConfig{
		ApprovalThreshold:  threshold,
		PromotionThreshold: promotion,
		PromotionBonus:     bonus.Round(2),
		ScoringURL:         viper.GetString("scoring.url"),
		ScoringTimeout:     viper.GetDuration("scoring.timeout"),
		ScoreCacheTTL:      viper.GetDuration("scoring.cache_ttl"),
		SweepSchedule:      viper.GetString("engine.sweep_schedule"),
		RateLimit:          viper.GetFloat64("engine.rate_limit"),
		RateBurst:          viper.GetInt("engine.rate_burst"),
		MediaDir:           viper.GetString("media.dir"),
		Store:              viper.GetString("engine.store"),
	}
}

// Defaults returns the engine configuration with every default applied and
// no environment overrides.
func Defaults() *EngineConfig {
	return &EngineConfig{
		ApprovalThreshold:  0.80,
		PromotionThreshold: 2,
		PromotionBonus:     decimal.RequireFromString("5.00"),
		ScoringTimeout:     10 * time.Second,
		ScoreCacheTTL:      24 * time.Hour,
		SweepSchedule:      "@every 1m",
		RateLimit:          2,
		RateBurst:          5,
		MediaDir:           "./media/tasks",
		Store:              "postgres",
	}
}
