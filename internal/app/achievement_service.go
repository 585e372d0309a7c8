package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rust_mentor_bot/internal/domain/catalog"
	"rust_mentor_bot/internal/domain/learner"
	idb "rust_mentor_bot/internal/infra/database"
	"rust_mentor_bot/internal/mastery"

	"github.com/sirupsen/logrus"
)

// Thresholds for the practice-volume awards.
const (
	practiceMasterAttempts  = 50
	codeWarriorTopics       = 3
	codeWarriorMasteryFloor = 0.7
)

// AchievementService checks a user's standing after each completed session
// and awards anything newly earned. Every kind is granted at most once per
// user; the unique constraint in the store backs that up under concurrency.
type AchievementService struct {
	achievements learner.AchievementRepository
	progress     learner.ProgressRepository
	catalog      catalog.Repository
	cfg          mastery.Config
	logger       *logrus.Entry

	// now is replaceable in tests.
	now func() time.Time
}

func NewAchievementService(
	achievements learner.AchievementRepository,
	progress learner.ProgressRepository,
	cat catalog.Repository,
	cfg mastery.Config,
	logger *logrus.Entry,
) *AchievementService {
	return &AchievementService{
		achievements: achievements,
		progress:     progress,
		catalog:      cat,
		cfg:          mastery.NewScorer(cfg).Config(),
		logger:       logger,
		now:          time.Now,
	}
}

// List returns everything the user has earned so far.
func (s *AchievementService) List(ctx context.Context, userID int64) ([]*learner.Achievement, error) {
	return s.achievements.ListByUser(ctx, userID)
}

// EvaluateOnCompletion awards any achievements the user newly qualifies
// for and returns them. Already-held kinds are skipped.
func (s *AchievementService) EvaluateOnCompletion(ctx context.Context, user *learner.User) ([]*learner.Achievement, error) {
	held, err := s.achievements.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	heldKinds := make(map[learner.AchievementKind]bool, len(held))
	for _, a := range held {
		heldKinds[a.Kind] = true
	}

	records, err := s.progress.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	topics, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	tiers := make(map[int64]catalog.Difficulty, len(topics))
	titles := make(map[int64]string, len(topics))
	for _, t := range topics {
		tiers[t.ID] = t.Tier
		titles[t.ID] = t.Title
	}

	var earned []*learner.Achievement
	add := func(kind learner.AchievementKind, details string) {
		if !heldKinds[kind] {
			earned = append(earned, &learner.Achievement{UserID: user.ID, Kind: kind, Details: details})
		}
	}

	add(learner.AchievementFirstLesson, "")

	if user.StreakCount >= 3 {
		add(learner.AchievementStreak3Days, fmt.Sprintf("streak of %d days", user.StreakCount))
	}
	if user.StreakCount >= 7 {
		add(learner.AchievementStreak7Days, fmt.Sprintf("streak of %d days", user.StreakCount))
	}
	if user.StreakCount >= 30 {
		add(learner.AchievementStreak30Days, fmt.Sprintf("streak of %d days", user.StreakCount))
	}

	totalAttempts := 0
	advancedMastered := 0
	for _, rec := range records {
		if rec.Archived {
			continue
		}
		totalAttempts += rec.Attempts
		if rec.Mastery >= s.cfg.RetainedThreshold {
			add(learner.AchievementTopicMastery, titles[rec.TopicID])
		}
		if tiers[rec.TopicID] == catalog.Advanced && rec.Mastery >= codeWarriorMasteryFloor {
			advancedMastered++
		}
	}
	if totalAttempts >= practiceMasterAttempts {
		add(learner.AchievementPracticeMaster, fmt.Sprintf("%d exercises completed", totalAttempts))
	}
	if advancedMastered >= codeWarriorTopics {
		add(learner.AchievementCodeWarrior, fmt.Sprintf("%d advanced topics mastered", advancedMastered))
	}

	awarded := make([]*learner.Achievement, 0, len(earned))
	for _, a := range earned {
		a.AwardedAt = s.now()
		if err := s.achievements.Award(ctx, a); err != nil {
			if errors.Is(err, idb.ErrDuplicateAchievement) {
				continue // raced with another unit of work
			}
			return awarded, fmt.Errorf("failed to award %s: %w", a.Kind, err)
		}
		s.logger.WithField("user_id", user.ID).WithField("kind", string(a.Kind)).Info("Achievement awarded")
		awarded = append(awarded, a)
	}
	return awarded, nil
}
