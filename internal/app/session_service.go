package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"rust_mentor_bot/internal/domain/catalog"
	"rust_mentor_bot/internal/domain/content"
	"rust_mentor_bot/internal/domain/learner"
	idb "rust_mentor_bot/internal/infra/database"
	"rust_mentor_bot/internal/mastery"
	"rust_mentor_bot/internal/plan"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Defaults for the content-generation retry budget.
const (
	DefaultMaxGenerateAttempts = 3
	DefaultBackoffBase         = 500 * time.Millisecond
)

// miniLessonTopicID marks sessions that present free-form content instead
// of a catalog topic. Their outcomes close the session but do not touch
// any progress record.
const miniLessonTopicID = 0

// StartResult is what a started session presents to the user.
type StartResult struct {
	SessionID string
	Lesson    *content.Lesson
	Topic     *catalog.Topic // nil for mini lessons
	Reason    plan.Reason    // empty for mini lessons
	// Degraded is set when generation exhausted its retries and static
	// fallback content was substituted; the session is already Failed.
	Degraded bool
}

// OutcomeResult reports the effect of a recorded exercise outcome.
type OutcomeResult struct {
	// AlreadyClosed is set when the session was terminal before this
	// report; nothing was changed.
	AlreadyClosed   bool
	Mastery         float64
	NextDueAt       time.Time
	StreakCount     int
	NewAchievements []*learner.Achievement
}

// SessionService orchestrates a single user interaction: it asks the
// planner what to present, obtains content from the generator, and records
// outcomes through the scorer into the progress store.
//
// Units of work for the same user are serialized with a per-user mutex
// around the progress read-modify-write; the slow generator call never
// holds that lock.
type SessionService struct {
	users        learner.UserRepository
	progress     learner.ProgressRepository
	sessions     learner.SessionRepository
	catalog      catalog.Repository
	generator    content.Generator
	scorer       *mastery.Scorer
	planner      *plan.Planner
	achievements *AchievementService
	logger       *logrus.Entry

	maxGenerateAttempts int
	backoffBase         time.Duration

	// now is replaceable in tests.
	now func() time.Time
	// sleep is replaceable in tests so backoff does not slow them down.
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

func NewSessionService(
	users learner.UserRepository,
	progress learner.ProgressRepository,
	sessions learner.SessionRepository,
	cat catalog.Repository,
	generator content.Generator,
	scorer *mastery.Scorer,
	planner *plan.Planner,
	achievements *AchievementService,
	logger *logrus.Entry,
) *SessionService {
	return &SessionService{
		users:               users,
		progress:            progress,
		sessions:            sessions,
		catalog:             cat,
		generator:           generator,
		scorer:              scorer,
		planner:             planner,
		achievements:        achievements,
		logger:              logger,
		maxGenerateAttempts: DefaultMaxGenerateAttempts,
		backoffBase:         DefaultBackoffBase,
		now:                 time.Now,
		sleep:               sleepCtx,
		userLocks:           make(map[int64]*sync.Mutex),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// lockUser returns the mutex serializing progress writes for one user.
func (s *SessionService) lockUser(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// EnsureUser returns the user for a Telegram account, creating the profile
// on first contact.
func (s *SessionService) EnsureUser(ctx context.Context, telegramID int64, firstName string, username string) (*learner.User, error) {
	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, idb.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = &learner.User{
		TelegramID:           telegramID,
		FirstName:            firstName,
		Frequency:            learner.MinFrequency,
		WindowStartMinute:    8 * 60,
		WindowEndMinute:      21 * 60,
		NotificationsEnabled: true,
	}
	if username != "" {
		user.Username = sql.NullString{String: username, Valid: true}
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, idb.ErrDuplicateTelegramID) {
			// Lost a race with another unit of work for the same account.
			return s.users.GetByTelegramID(ctx, telegramID)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.WithField("user_id", user.ID).WithField("telegram_id", telegramID).Info("New user registered")
	return user, nil
}

// StartSession begins an interaction. With requestedSlug empty the planner
// chooses the topic; an unknown slug is fatal to the request. When the
// planner has nothing to present, a free-form mini lesson is substituted.
func (s *SessionService) StartSession(ctx context.Context, telegramID int64, firstName, username string, requestedSlug string) (*StartResult, error) {
	user, err := s.EnsureUser(ctx, telegramID, firstName, username)
	if err != nil {
		return nil, err
	}

	records, err := s.progress.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	topics, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	var (
		topic  *catalog.Topic
		reason plan.Reason
	)
	if requestedSlug != "" {
		topic, err = s.catalog.GetBySlug(ctx, requestedSlug)
		if err != nil {
			return nil, fmt.Errorf("requested topic %q: %w", requestedSlug, err)
		}
		reason = plan.ReasonReview
	} else if decision := s.planner.NextTopic(topics, records, s.now()); decision != nil {
		topic = decision.Topic
		reason = decision.Reason
	}

	return s.present(ctx, user, topic, reason, records, topics)
}

// MiniLesson serves a free-form lesson on demand (/mini), bypassing the
// planner entirely.
func (s *SessionService) MiniLesson(ctx context.Context, telegramID int64, firstName, username string) (*StartResult, error) {
	user, err := s.EnsureUser(ctx, telegramID, firstName, username)
	if err != nil {
		return nil, err
	}
	records, err := s.progress.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	topics, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return s.present(ctx, user, nil, "", records, topics)
}

// present records the session, fetches content (or fallback) and walks the
// session through its states.
func (s *SessionService) present(ctx context.Context, user *learner.User, topic *catalog.Topic, reason plan.Reason, records []*learner.ProgressRecord, topics []*catalog.Topic) (*StartResult, error) {
	session := &learner.LearningSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TopicID:   miniLessonTopicID,
		State:     learner.SessionRequested,
		StartedAt: s.now(),
	}
	if topic != nil {
		session.TopicID = topic.ID
		session.ContentRef = topic.Slug
	} else {
		session.ContentRef = "mini-lesson"
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}

	logCtx := s.logger.WithField("session_id", session.ID).WithField("user_id", user.ID)

	profile := s.buildProfile(records, topics)
	lesson, genErr := s.fetchContent(ctx, topic, profile)
	if genErr != nil {
		// Retry budget exhausted: fail the session but still hand the
		// user something rather than nothing.
		logCtx.WithError(genErr).Warn("Content generation exhausted retries, serving fallback")
		session.State = learner.SessionFailed
		session.ContentRef = "fallback"
		session.EndedAt = sql.NullTime{Time: s.now(), Valid: true}
		if err := s.sessions.Close(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to close failed session: %w", err)
		}
		return &StartResult{
			SessionID: session.ID,
			Lesson:    fallbackLesson(topic),
			Topic:     topic,
			Reason:    reason,
			Degraded:  true,
		}, nil
	}

	session.State = learner.SessionContentFetched
	if err := s.sessions.UpdateState(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session state: %w", err)
	}
	session.State = learner.SessionPresented
	if err := s.sessions.UpdateState(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session state: %w", err)
	}

	logCtx.WithField("content_ref", session.ContentRef).Info("Lesson presented")
	return &StartResult{
		SessionID: session.ID,
		Lesson:    lesson,
		Topic:     topic,
		Reason:    reason,
	}, nil
}

// fetchContent calls the generator with the retry budget, backing off
// between attempts. Only transient generation errors are retried.
func (s *SessionService) fetchContent(ctx context.Context, topic *catalog.Topic, profile content.Profile) (*content.Lesson, error) {
	var lastErr error
	backoff := s.backoffBase
	for attempt := 1; attempt <= s.maxGenerateAttempts; attempt++ {
		var (
			lesson *content.Lesson
			err    error
		)
		if topic != nil {
			lesson, err = s.generator.Generate(ctx, topic, profile)
		} else {
			lesson, err = s.generator.GenerateFreeForm(ctx, profile)
		}
		if err == nil {
			return lesson, nil
		}
		lastErr = err
		if !errors.Is(err, content.ErrGeneration) {
			return nil, err
		}
		if attempt < s.maxGenerateAttempts {
			if err := s.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

// fallbackLesson is the canned content served when generation fails.
func fallbackLesson(topic *catalog.Topic) *content.Lesson {
	title := "Rust warm-up"
	body := "The lesson service is unavailable right now. In the meantime: open one of your " +
		"recent exercises and rewrite it without looking at the original. Re-deriving a " +
		"solution from memory is one of the strongest forms of practice."
	if topic != nil {
		title = topic.Title
		body = fmt.Sprintf("The lesson service is unavailable right now. In the meantime, revisit %q: "+
			"write a small program from memory that demonstrates the concept, then check it with "+
			"`cargo check`. We'll pick this topic up again shortly.", topic.Title)
	}
	return &content.Lesson{
		Title:    title,
		Body:     body,
		Exercise: "Sketch the example from memory and make it compile.",
	}
}

// ReportOutcome records the user-reported result for a session. Reports
// against a session that already reached a terminal state are ignored, so
// duplicate button presses never double-count.
func (s *SessionService) ReportOutcome(ctx context.Context, sessionID string, outcome learner.Outcome, weight float64) (*OutcomeResult, error) {
	if !outcome.IsValid() {
		return nil, fmt.Errorf("%w: %q", learner.ErrInvalidOutcome, outcome)
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.State.Terminal() {
		return &OutcomeResult{AlreadyClosed: true}, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	now := s.now()

	// Close before scoring. The store's state guard lets exactly one report
	// win, so a concurrent duplicate that also saw the session open loses
	// here and never reaches the scorer.
	session.State = learner.SessionCompleted
	session.Outcome = sql.NullString{String: string(outcome), Valid: true}
	session.EndedAt = sql.NullTime{Time: now, Valid: true}
	if err := s.sessions.Close(ctx, session); err != nil {
		if errors.Is(err, idb.ErrSessionNotFound) {
			return &OutcomeResult{AlreadyClosed: true}, nil
		}
		return nil, fmt.Errorf("failed to close session: %w", err)
	}

	result := &OutcomeResult{}
	if session.TopicID != miniLessonTopicID {
		rec, err := s.applyOutcome(ctx, user.ID, session.TopicID, outcome, weight, now)
		if err != nil {
			return nil, err
		}
		result.Mastery = rec.Mastery
		result.NextDueAt = rec.NextDueAt
	}

	user.TouchStreak(now)
	if err := s.users.UpdateStreak(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}
	result.StreakCount = user.StreakCount

	awarded, err := s.achievements.EvaluateOnCompletion(ctx, user)
	if err != nil {
		// Achievements are decoration; a failure here must not undo a
		// recorded outcome.
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Achievement evaluation failed")
	} else {
		result.NewAchievements = awarded
	}

	s.logger.WithField("session_id", sessionID).
		WithField("user_id", user.ID).
		WithField("outcome", string(outcome)).
		Info("Session completed")
	return result, nil
}

// applyOutcome performs the serialized read-modify-write of the user's
// progress record. A store-level version conflict is retried once with a
// fresh read.
func (s *SessionService) applyOutcome(ctx context.Context, userID, topicID int64, outcome learner.Outcome, weight float64, now time.Time) (*learner.ProgressRecord, error) {
	lock := s.lockUser(userID)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; ; attempt++ {
		rec, err := s.progress.Get(ctx, userID, topicID)
		switch {
		case errors.Is(err, idb.ErrProgressNotFound):
			rec = &learner.ProgressRecord{UserID: userID, TopicID: topicID}
			s.scorer.Apply(rec, outcome, weight, now)
			if err := s.progress.Create(ctx, rec); err != nil {
				if errors.Is(err, idb.ErrDuplicateProgress) && attempt == 0 {
					continue // lost a create race, re-read and update
				}
				return nil, fmt.Errorf("failed to create progress record: %w", err)
			}
			return rec, nil
		case err != nil:
			return nil, fmt.Errorf("failed to read progress record: %w", err)
		}

		s.scorer.Apply(rec, outcome, weight, now)
		err = s.progress.Update(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, idb.ErrVersionConflict) && attempt == 0 {
			continue
		}
		return nil, fmt.Errorf("failed to update progress record: %w", err)
	}
}

// UpdatePreferences validates and stores new notification preferences.
// Invalid input leaves the stored preferences unchanged.
func (s *SessionService) UpdatePreferences(ctx context.Context, telegramID int64, frequency, windowStartMinute, windowEndMinute int, enabled bool) error {
	if err := learner.ValidatePreferences(frequency, windowStartMinute, windowEndMinute); err != nil {
		return err
	}
	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	user.Frequency = frequency
	user.WindowStartMinute = windowStartMinute
	user.WindowEndMinute = windowEndMinute
	user.NotificationsEnabled = enabled
	if err := s.users.UpdatePreferences(ctx, user); err != nil {
		return fmt.Errorf("failed to store preferences: %w", err)
	}
	s.logger.WithField("user_id", user.ID).
		WithField("frequency", frequency).
		WithField("enabled", enabled).
		Info("Preferences updated")
	return nil
}

// Report is the aggregate progress summary for /progress.
type Report struct {
	StreakCount    int
	TotalTopics    int
	Attempted      int
	Mastered       int
	DueCount       int
	AverageMastery float64
	StrongTopics   []string
	WeakTopics     []string
	Achievements   []*learner.Achievement
}

// ProgressReport aggregates a user's standing across the catalog.
func (s *SessionService) ProgressReport(ctx context.Context, telegramID int64) (*Report, error) {
	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	records, err := s.progress.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	topics, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	awards, err := s.achievements.List(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}

	titles := make(map[int64]string, len(topics))
	for _, t := range topics {
		titles[t.ID] = t.Title
	}

	cfg := s.scorer.Config()
	now := s.now()
	report := &Report{
		StreakCount:  user.StreakCount,
		TotalTopics:  len(topics),
		Achievements: awards,
	}
	var sum float64
	for _, rec := range records {
		if rec.Archived || rec.Attempts == 0 {
			continue
		}
		report.Attempted++
		sum += rec.Mastery
		switch {
		case rec.Mastery >= cfg.RetainedThreshold:
			report.Mastered++
			report.StrongTopics = append(report.StrongTopics, titles[rec.TopicID])
		case rec.Mastery < cfg.PrereqThreshold:
			report.WeakTopics = append(report.WeakTopics, titles[rec.TopicID])
		}
		if rec.Due(now, cfg.RetainedThreshold) {
			report.DueCount++
		}
	}
	if report.Attempted > 0 {
		report.AverageMastery = sum / float64(report.Attempted)
	}
	return report, nil
}

// buildProfile summarizes progress for the generator prompt.
func (s *SessionService) buildProfile(records []*learner.ProgressRecord, topics []*catalog.Topic) content.Profile {
	cfg := s.scorer.Config()
	byID := make(map[int64]*catalog.Topic, len(topics))
	for _, t := range topics {
		byID[t.ID] = t
	}

	profile := content.Profile{Level: catalog.Beginner}
	for _, rec := range records {
		topic, ok := byID[rec.TopicID]
		if !ok || rec.Archived || rec.Attempts == 0 {
			continue
		}
		switch {
		case rec.Mastery >= cfg.RetainedThreshold:
			profile.StrongTopics = append(profile.StrongTopics, topic.Title)
			if topic.Tier > profile.Level {
				profile.Level = topic.Tier
			}
		case rec.Mastery < cfg.PrereqThreshold:
			profile.WeakTopics = append(profile.WeakTopics, topic.Title)
		}
	}
	return profile
}
