// Package mastery computes mastery estimates and spaced-repetition
// intervals from exercise outcomes.
//
// The update rule is an exponential moving average: mastery moves toward
// 1.0 on success and toward 0.0 on failure with a bounded step, so the
// estimate always stays inside [0,1]. Intervals grow geometrically on
// successful recall and reset to a floor on failure.
package mastery

import (
	"time"

	"rust_mentor_bot/internal/domain/learner"
)

// Config holds the tunable constants of the scorer. The source material
// gives no authoritative numbers, so all of them are adjustable; zero
// fields are replaced by the defaults below.
type Config struct {
	// Alpha is the EMA learning rate in (0,1). Larger values move the
	// mastery estimate faster.
	Alpha float64

	// GrowthFactor multiplies the review interval after a successful
	// recall. Must be > 1.
	GrowthFactor float64

	// MinInterval is the floor the interval resets to on failure and the
	// interval assigned on the first successful recall.
	MinInterval time.Duration

	// MaxInterval caps interval growth.
	MaxInterval time.Duration

	// RetainedThreshold is the mastery level at or above which a topic no
	// longer comes up for review even when its due date has passed.
	RetainedThreshold float64

	// PrereqThreshold is the mastery a prerequisite must reach before a
	// dependent topic becomes eligible as new content.
	PrereqThreshold float64

	// PartialPassWeight is the partial-credit weight at or above which a
	// partial outcome counts as successful recall for interval scheduling.
	PartialPassWeight float64
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		Alpha:             0.35,
		GrowthFactor:      1.8,
		MinInterval:       24 * time.Hour,
		MaxInterval:       30 * 24 * time.Hour,
		RetainedThreshold: 0.8,
		PrereqThreshold:   0.6,
		PartialPassWeight: 0.5,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Alpha <= 0 || c.Alpha >= 1 {
		c.Alpha = def.Alpha
	}
	if c.GrowthFactor <= 1 {
		c.GrowthFactor = def.GrowthFactor
	}
	if c.MinInterval <= 0 {
		c.MinInterval = def.MinInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.RetainedThreshold <= 0 {
		c.RetainedThreshold = def.RetainedThreshold
	}
	if c.PrereqThreshold <= 0 {
		c.PrereqThreshold = def.PrereqThreshold
	}
	if c.PartialPassWeight <= 0 {
		c.PartialPassWeight = def.PartialPassWeight
	}
	return c
}

// Scorer applies exercise outcomes to progress records.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer. Zero fields in cfg take their defaults.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg.withDefaults()}
}

// Config returns the effective (defaulted) configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Apply updates rec in place for one exercise outcome observed at now.
// It never returns an error for any declared outcome value: an invalid
// outcome is treated as a failure, and a partial-credit weight outside
// [0,1] is clamped rather than rejected.
func (s *Scorer) Apply(rec *learner.ProgressRecord, outcome learner.Outcome, weight float64, now time.Time) {
	target := outcomeTarget(outcome, weight)

	// EMA step toward the target. target=1 on success, 0 on failure, the
	// clamped weight on partial credit.
	rec.Mastery += s.cfg.Alpha * (target - rec.Mastery)
	rec.Mastery = clamp01(rec.Mastery)

	rec.Attempts++
	rec.LastReviewedAt = now

	if target >= s.cfg.PartialPassWeight {
		rec.Streak++
		rec.Interval = s.nextInterval(rec.Interval)
	} else {
		rec.Streak = 0
		rec.Interval = s.cfg.MinInterval
	}

	rec.NextDueAt = now.Add(rec.Interval)
}

// nextInterval grows a successful recall's interval: the floor on the first
// success, then geometric growth up to the cap.
func (s *Scorer) nextInterval(current time.Duration) time.Duration {
	if current < s.cfg.MinInterval {
		return s.cfg.MinInterval
	}
	next := time.Duration(float64(current) * s.cfg.GrowthFactor)
	if next > s.cfg.MaxInterval {
		return s.cfg.MaxInterval
	}
	return next
}

func outcomeTarget(outcome learner.Outcome, weight float64) float64 {
	switch outcome {
	case learner.OutcomeSuccess:
		return 1
	case learner.OutcomePartial:
		return clamp01(weight)
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
