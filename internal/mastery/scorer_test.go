package mastery

import (
	"math/rand"
	"testing"
	"time"

	"rust_mentor_bot/internal/domain/learner"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newRecord() *learner.ProgressRecord {
	return &learner.ProgressRecord{UserID: 1, TopicID: 1}
}

func TestMasteryStaysBounded(t *testing.T) {
	s := NewScorer(Config{})
	rec := newRecord()
	rng := rand.New(rand.NewSource(42))

	outcomes := []learner.Outcome{learner.OutcomeSuccess, learner.OutcomeFailure, learner.OutcomePartial}
	now := testNow
	for i := 0; i < 1000; i++ {
		outcome := outcomes[rng.Intn(len(outcomes))]
		// Deliberately out-of-range weights: must be clamped, not rejected.
		weight := rng.Float64()*4 - 2
		s.Apply(rec, outcome, weight, now)

		if rec.Mastery < 0 || rec.Mastery > 1 {
			t.Fatalf("iteration %d: mastery %v out of [0,1]", i, rec.Mastery)
		}
		if rec.NextDueAt.Before(rec.LastReviewedAt) {
			t.Fatalf("iteration %d: next due %v before last reviewed %v", i, rec.NextDueAt, rec.LastReviewedAt)
		}
		now = now.Add(time.Hour)
	}
}

func TestSuccessNeverDecreasesMastery(t *testing.T) {
	s := NewScorer(Config{})
	for _, start := range []float64{0, 0.25, 0.5, 0.99, 1} {
		rec := newRecord()
		rec.Mastery = start
		s.Apply(rec, learner.OutcomeSuccess, 0, testNow)
		if rec.Mastery < start {
			t.Errorf("success from %v decreased mastery to %v", start, rec.Mastery)
		}
	}
}

func TestFailureNeverIncreasesMastery(t *testing.T) {
	s := NewScorer(Config{})
	for _, start := range []float64{0, 0.25, 0.5, 0.99, 1} {
		rec := newRecord()
		rec.Mastery = start
		s.Apply(rec, learner.OutcomeFailure, 0, testNow)
		if rec.Mastery > start {
			t.Errorf("failure from %v increased mastery to %v", start, rec.Mastery)
		}
	}
}

func TestIntervalGrowsOnSuccessUntilCap(t *testing.T) {
	s := NewScorer(Config{})
	rec := newRecord()
	now := testNow

	prev := time.Duration(0)
	for i := 0; i < 20; i++ {
		s.Apply(rec, learner.OutcomeSuccess, 0, now)
		if rec.Interval < prev {
			t.Fatalf("attempt %d: interval shrank from %v to %v", i, prev, rec.Interval)
		}
		if rec.Interval > s.Config().MaxInterval {
			t.Fatalf("attempt %d: interval %v exceeds cap %v", i, rec.Interval, s.Config().MaxInterval)
		}
		prev = rec.Interval
		now = now.Add(rec.Interval)
	}
	if rec.Interval != s.Config().MaxInterval {
		t.Errorf("after 20 successes interval = %v, want cap %v", rec.Interval, s.Config().MaxInterval)
	}
	if rec.Streak != 20 {
		t.Errorf("streak = %d, want 20", rec.Streak)
	}
}

func TestFailureResetsIntervalAndStreak(t *testing.T) {
	s := NewScorer(Config{})
	rec := newRecord()
	now := testNow

	for i := 0; i < 5; i++ {
		s.Apply(rec, learner.OutcomeSuccess, 0, now)
		now = now.Add(rec.Interval)
	}
	if rec.Interval <= s.Config().MinInterval {
		t.Fatalf("setup: interval %v did not grow past floor", rec.Interval)
	}

	s.Apply(rec, learner.OutcomeFailure, 0, now)
	if rec.Interval != s.Config().MinInterval {
		t.Errorf("interval after failure = %v, want floor %v", rec.Interval, s.Config().MinInterval)
	}
	if rec.Streak != 0 {
		t.Errorf("streak after failure = %d, want 0", rec.Streak)
	}
	if got, want := rec.NextDueAt, now.Add(s.Config().MinInterval); !got.Equal(want) {
		t.Errorf("next due = %v, want %v", got, want)
	}
}

func TestPartialOutcome(t *testing.T) {
	tests := []struct {
		name       string
		weight     float64
		wantGrowth bool
	}{
		{"high partial counts as recall", 0.8, true},
		{"threshold partial counts as recall", 0.5, true},
		{"low partial resets", 0.2, false},
		{"negative weight clamped to failure", -3, false},
		{"overweight clamped to success", 7, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(Config{})
			rec := newRecord()
			now := testNow
			// Establish a grown interval first.
			for i := 0; i < 4; i++ {
				s.Apply(rec, learner.OutcomeSuccess, 0, now)
				now = now.Add(rec.Interval)
			}
			before := rec.Interval

			s.Apply(rec, learner.OutcomePartial, tt.weight, now)
			if tt.wantGrowth && rec.Interval < before {
				t.Errorf("weight %v: interval shrank %v -> %v", tt.weight, before, rec.Interval)
			}
			if !tt.wantGrowth && rec.Interval != s.Config().MinInterval {
				t.Errorf("weight %v: interval = %v, want floor %v", tt.weight, rec.Interval, s.Config().MinInterval)
			}
			if rec.Mastery < 0 || rec.Mastery > 1 {
				t.Errorf("weight %v: mastery %v out of bounds", tt.weight, rec.Mastery)
			}
		})
	}
}

func TestPartialStepIsFractional(t *testing.T) {
	s := NewScorer(Config{})

	full := newRecord()
	s.Apply(full, learner.OutcomeSuccess, 0, testNow)

	part := newRecord()
	s.Apply(part, learner.OutcomePartial, 0.6, testNow)

	if part.Mastery >= full.Mastery {
		t.Errorf("partial step %v should be smaller than full success step %v", part.Mastery, full.Mastery)
	}
	if part.Mastery <= 0 {
		t.Errorf("partial step should still raise mastery from zero, got %v", part.Mastery)
	}
}

func TestAttemptsAlwaysCounted(t *testing.T) {
	s := NewScorer(Config{})
	rec := newRecord()
	for i, o := range []learner.Outcome{learner.OutcomeSuccess, learner.OutcomeFailure, learner.OutcomePartial, learner.Outcome("BOGUS")} {
		s.Apply(rec, o, 0.5, testNow.Add(time.Duration(i)*time.Hour))
	}
	if rec.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", rec.Attempts)
	}
}

func TestConfigDefaults(t *testing.T) {
	s := NewScorer(Config{Alpha: -1, GrowthFactor: 0.5})
	cfg := s.Config()
	def := DefaultConfig()
	if cfg.Alpha != def.Alpha {
		t.Errorf("Alpha = %v, want default %v", cfg.Alpha, def.Alpha)
	}
	if cfg.GrowthFactor != def.GrowthFactor {
		t.Errorf("GrowthFactor = %v, want default %v", cfg.GrowthFactor, def.GrowthFactor)
	}
	if cfg.MinInterval != def.MinInterval || cfg.MaxInterval != def.MaxInterval {
		t.Errorf("intervals = %v/%v, want defaults %v/%v", cfg.MinInterval, cfg.MaxInterval, def.MinInterval, def.MaxInterval)
	}
}
