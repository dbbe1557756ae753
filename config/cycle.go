package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

const (
	PacingJitter      = "jitter"
	PacingTokenBucket = "token_bucket"
	PacingNone        = "none"
)

// PacingConfig controls the delays inserted between model calls.
type PacingConfig struct {
	Strategy          string        `mapstructure:"strategy"`
	InterAgentDelay   time.Duration `mapstructure:"inter_agent_delay"`
	Jitter            time.Duration `mapstructure:"jitter"`
	FailureDelay      time.Duration `mapstructure:"failure_delay"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
}

// Normalize fills unset pacing values with the defaults free-tier keys tolerate.
func (p PacingConfig) Normalize() PacingConfig {
	p.Strategy = strings.ToLower(strings.TrimSpace(p.Strategy))
	if p.Strategy == "" {
		p.Strategy = PacingJitter
	}
	if p.InterAgentDelay <= 0 {
		p.InterAgentDelay = 2 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	} else if p.Jitter == 0 {
		p.Jitter = time.Second
	}
	if p.FailureDelay <= 0 {
		p.FailureDelay = 5 * time.Second
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = 3 * time.Second
	}
	if p.RequestsPerMinute <= 0 {
		p.RequestsPerMinute = 20
	}
	if p.Burst <= 0 {
		p.Burst = 1
	}
	return p
}

func (p PacingConfig) Validate() error {
	switch p.Strategy {
	case PacingJitter, PacingTokenBucket, PacingNone:
		return nil
	default:
		return fmt.Errorf("pacing.strategy %q must be one of jitter, token_bucket, none", p.Strategy)
	}
}

// DefaultMaxRounds caps rounds per cycle when nothing else is configured.
const DefaultMaxRounds = 3

// CycleConfig holds orchestration knobs that are not persisted per user.
type CycleConfig struct {
	MaxRounds            int           `mapstructure:"max_rounds"`
	EvaluateCompleteness bool          `mapstructure:"evaluate_completeness"`
	ContinuousDelay      time.Duration `mapstructure:"continuous_delay"`
	ErrorTTL             time.Duration `mapstructure:"error_ttl"`
	StatusTTL            time.Duration `mapstructure:"status_ttl"`
	StructuredTasks      bool          `mapstructure:"structured_tasks"`
}

func (c CycleConfig) Normalize() CycleConfig {
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.ContinuousDelay <= 0 {
		c.ContinuousDelay = 3 * time.Second
	}
	if c.ErrorTTL <= 0 {
		c.ErrorTTL = 10 * time.Second
	}
	if c.StatusTTL <= 0 {
		c.StatusTTL = 3 * time.Second
	}
	return c
}

func (c CycleConfig) Validate() error {
	if c.MaxRounds > 20 {
		return fmt.Errorf("cycle.max_rounds must be <= 20, got %d", c.MaxRounds)
	}
	return nil
}

// ScheduleConfig starts a cycle on a cron cadence.
type ScheduleConfig struct {
	Topic string `mapstructure:"topic"`
	Cron  string `mapstructure:"cron"`
}

func (s ScheduleConfig) Validate() error {
	if strings.TrimSpace(s.Topic) == "" {
		return fmt.Errorf("topic required")
	}
	switch strings.TrimSpace(s.Cron) {
	case "":
		return fmt.Errorf("cron required")
	case "@hourly", "@daily":
		return nil
	}
	if _, err := cronexpr.Parse(s.Cron); err != nil {
		return fmt.Errorf("invalid cron %q: %w", s.Cron, err)
	}
	return nil
}
