// Package plan decides what a learner should see next and when they should
// be reminded.
//
// Topic selection partitions the catalog into due-for-review, eligible-new
// and not-yet-eligible sets: overdue reviews come first (most overdue
// wins), then new topics in catalog order starting from the easiest tier.
// When neither set has a candidate the planner reports nothing to present
// and the caller falls back to a free-form mini lesson.
package plan

import (
	"sort"
	"time"

	"rust_mentor_bot/internal/domain/catalog"
	"rust_mentor_bot/internal/domain/learner"
	"rust_mentor_bot/internal/mastery"
)

// Reason explains why a topic was selected.
type Reason string

const (
	ReasonReview Reason = "REVIEW"
	ReasonNew    Reason = "NEW"
)

// Decision is the planner's choice of the next unit of content.
type Decision struct {
	Topic  *catalog.Topic
	Reason Reason
}

// Planner selects topics according to the scorer's thresholds.
type Planner struct {
	cfg mastery.Config
}

// NewPlanner creates a planner sharing the scorer's tuning.
func NewPlanner(cfg mastery.Config) *Planner {
	return &Planner{cfg: mastery.NewScorer(cfg).Config()}
}

// NextTopic picks the next topic for a user, or nil when nothing is due
// and no new topic is eligible.
func (p *Planner) NextTopic(topics []*catalog.Topic, records []*learner.ProgressRecord, now time.Time) *Decision {
	byTopic := make(map[int64]*learner.ProgressRecord, len(records))
	for _, rec := range records {
		byTopic[rec.TopicID] = rec
	}

	if due := p.mostOverdue(topics, byTopic, now); due != nil {
		return &Decision{Topic: due, Reason: ReasonReview}
	}
	if fresh := p.firstEligibleNew(topics, byTopic); fresh != nil {
		return &Decision{Topic: fresh, Reason: ReasonNew}
	}
	return nil
}

// mostOverdue returns the due-for-review topic with the largest overdue
// span, or nil when none is due.
func (p *Planner) mostOverdue(topics []*catalog.Topic, byTopic map[int64]*learner.ProgressRecord, now time.Time) *catalog.Topic {
	var (
		best        *catalog.Topic
		bestOverdue time.Duration
	)
	for _, topic := range topics {
		rec, ok := byTopic[topic.ID]
		if !ok || !rec.Due(now, p.cfg.RetainedThreshold) {
			continue
		}
		overdue := now.Sub(rec.NextDueAt)
		if best == nil || overdue > bestOverdue {
			best = topic
			bestOverdue = overdue
		}
	}
	return best
}

// firstEligibleNew returns the first unattempted topic whose prerequisites
// are all mastered past the threshold, ordered by tier then catalog
// position.
func (p *Planner) firstEligibleNew(topics []*catalog.Topic, byTopic map[int64]*learner.ProgressRecord) *catalog.Topic {
	var eligible []*catalog.Topic
	for _, topic := range topics {
		if !p.isNew(topic, byTopic) {
			continue
		}
		if !p.prerequisitesMet(topic, byTopic) {
			continue
		}
		eligible = append(eligible, topic)
	}
	if len(eligible) == 0 {
		return nil
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Tier != eligible[j].Tier {
			return eligible[i].Tier < eligible[j].Tier
		}
		return eligible[i].Position < eligible[j].Position
	})
	return eligible[0]
}

// isNew reports whether the topic still counts as unlearned: no record at
// all, or a record whose mastery never left zero. Attempts alone do not
// disqualify a topic, so one that was tried and fully failed stays in the
// new-content pool.
func (p *Planner) isNew(topic *catalog.Topic, byTopic map[int64]*learner.ProgressRecord) bool {
	rec, ok := byTopic[topic.ID]
	if !ok {
		return true
	}
	return !rec.Archived && rec.Mastery == 0
}

func (p *Planner) prerequisitesMet(topic *catalog.Topic, byTopic map[int64]*learner.ProgressRecord) bool {
	for _, prereqID := range topic.Prerequisites {
		rec, ok := byTopic[prereqID]
		if !ok || rec.Mastery < p.cfg.PrereqThreshold {
			return false
		}
	}
	return true
}
