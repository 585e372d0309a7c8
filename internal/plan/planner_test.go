package plan

import (
	"testing"
	"time"

	"rust_mentor_bot/internal/domain/catalog"
	"rust_mentor_bot/internal/domain/learner"
	"rust_mentor_bot/internal/mastery"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func topic(id int64, slug string, tier catalog.Difficulty, pos int, prereqs ...int64) *catalog.Topic {
	return &catalog.Topic{ID: id, Slug: slug, Title: slug, Tier: tier, Position: pos, Prerequisites: prereqs}
}

func dueRecord(topicID int64, mastery float64, overdue time.Duration) *learner.ProgressRecord {
	return &learner.ProgressRecord{
		UserID:         1,
		TopicID:        topicID,
		Mastery:        mastery,
		Attempts:       3,
		LastReviewedAt: now.Add(-overdue - 24*time.Hour),
		NextDueAt:      now.Add(-overdue),
	}
}

func TestMostOverdueReviewWins(t *testing.T) {
	p := NewPlanner(mastery.Config{})
	topics := []*catalog.Topic{
		topic(1, "ownership", catalog.Beginner, 1),
		topic(2, "borrowing", catalog.Beginner, 2),
	}
	records := []*learner.ProgressRecord{
		dueRecord(1, 0.4, 5*24*time.Hour), // A: overdue 5 days
		dueRecord(2, 0.4, 24*time.Hour),   // B: overdue 1 day
	}

	d := p.NextTopic(topics, records, now)
	if d == nil {
		t.Fatal("expected a decision")
	}
	if d.Topic.ID != 1 || d.Reason != ReasonReview {
		t.Errorf("selected topic %d (%s), want topic 1 as review", d.Topic.ID, d.Reason)
	}
}

func TestRetainedTopicsAreNotDue(t *testing.T) {
	p := NewPlanner(mastery.Config{})
	topics := []*catalog.Topic{topic(1, "ownership", catalog.Beginner, 1)}
	// Overdue by date but already past the retained threshold.
	records := []*learner.ProgressRecord{dueRecord(1, 0.95, 48*time.Hour)}

	if d := p.NextTopic(topics, records, now); d != nil {
		t.Errorf("retained topic selected for review: %+v", d)
	}
}

func TestNewTopicOrderedByTierThenPosition(t *testing.T) {
	p := NewPlanner(mastery.Config{})
	topics := []*catalog.Topic{
		topic(2, "traits", catalog.Intermediate, 1), // Y: Intermediate
		topic(1, "structs", catalog.Beginner, 5),    // X: Beginner
	}

	d := p.NextTopic(topics, nil, now)
	if d == nil {
		t.Fatal("expected a decision")
	}
	if d.Topic.ID != 1 || d.Reason != ReasonNew {
		t.Errorf("selected topic %d (%s), want beginner topic 1 as new", d.Topic.ID, d.Reason)
	}
}

func TestPrerequisiteGate(t *testing.T) {
	p := NewPlanner(mastery.Config{})
	topics := []*catalog.Topic{
		topic(1, "ownership", catalog.Beginner, 1),
		topic(2, "lifetimes", catalog.Advanced, 1, 1),
	}

	t.Run("unmet prerequisite blocks selection", func(t *testing.T) {
		records := []*learner.ProgressRecord{
			{UserID: 1, TopicID: 1, Mastery: 0.3, Attempts: 2, NextDueAt: now.Add(48 * time.Hour)},
		}
		d := p.NextTopic(topics, records, now)
		if d != nil && d.Topic.ID == 2 {
			t.Errorf("topic with unmet prerequisite selected")
		}
	})

	t.Run("absent prerequisite record blocks selection", func(t *testing.T) {
		d := p.NextTopic([]*catalog.Topic{topics[1]}, nil, now)
		if d != nil {
			t.Errorf("topic selected without any prerequisite progress: %+v", d)
		}
	})

	t.Run("mastered prerequisite unlocks", func(t *testing.T) {
		records := []*learner.ProgressRecord{
			{UserID: 1, TopicID: 1, Mastery: 0.85, Attempts: 6, NextDueAt: now.Add(48 * time.Hour)},
		}
		d := p.NextTopic([]*catalog.Topic{topics[1]}, records, now)
		if d == nil || d.Topic.ID != 2 {
			t.Errorf("expected topic 2 to unlock, got %+v", d)
		}
	})
}

func TestFailedTopicRemainsEligibleAsNew(t *testing.T) {
	p := NewPlanner(mastery.Config{})
	topics := []*catalog.Topic{topic(1, "ownership", catalog.Beginner, 1)}
	// Attempted and fully failed: mastery never left zero and the next
	// review is still a day away, yet the topic stays in the new pool.
	records := []*learner.ProgressRecord{
		{UserID: 1, TopicID: 1, Mastery: 0, Attempts: 3, LastReviewedAt: now.Add(-time.Hour), NextDueAt: now.Add(24 * time.Hour)},
	}

	d := p.NextTopic(topics, records, now)
	if d == nil {
		t.Fatal("expected a decision")
	}
	if d.Topic.ID != 1 || d.Reason != ReasonNew {
		t.Errorf("selected topic %d (%s), want topic 1 as new", d.Topic.ID, d.Reason)
	}
}

func TestReviewBeatsNew(t *testing.T) {
	p := NewPlanner(mastery.Config{})
	topics := []*catalog.Topic{
		topic(1, "ownership", catalog.Beginner, 1),
		topic(2, "structs", catalog.Beginner, 2),
	}
	records := []*learner.ProgressRecord{dueRecord(1, 0.4, time.Hour)}

	d := p.NextTopic(topics, records, now)
	if d == nil || d.Reason != ReasonReview || d.Topic.ID != 1 {
		t.Errorf("due review should beat eligible new, got %+v", d)
	}
}

func TestNothingToPresent(t *testing.T) {
	p := NewPlanner(mastery.Config{})
	topics := []*catalog.Topic{topic(1, "ownership", catalog.Beginner, 1)}
	// Attempted, not due yet, below retained threshold.
	records := []*learner.ProgressRecord{
		{UserID: 1, TopicID: 1, Mastery: 0.5, Attempts: 2, LastReviewedAt: now.Add(-time.Hour), NextDueAt: now.Add(24 * time.Hour)},
	}

	if d := p.NextTopic(topics, records, now); d != nil {
		t.Errorf("expected nothing to present, got %+v", d)
	}
}

func TestArchivedRecordsIgnoredForReview(t *testing.T) {
	p := NewPlanner(mastery.Config{})
	topics := []*catalog.Topic{topic(1, "ownership", catalog.Beginner, 1)}
	rec := dueRecord(1, 0.4, 48*time.Hour)
	rec.Archived = true

	d := p.NextTopic(topics, []*learner.ProgressRecord{rec}, now)
	if d != nil && d.Reason == ReasonReview {
		t.Errorf("archived record scheduled for review: %+v", d)
	}
}
