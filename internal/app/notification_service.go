package app

import (
	"context"
	"fmt"
	"time"

	"rust_mentor_bot/internal/domain/learner"
	notify "rust_mentor_bot/internal/domain/notify"
	"rust_mentor_bot/internal/mastery"
	"rust_mentor_bot/internal/plan"

	"github.com/sirupsen/logrus"
)

// NotificationService decides, on every sweep, which users should receive
// a study reminder right now.
//
// Reminder times are not stored: each sweep recomputes today's slots from
// the user's current preferences. That makes cancellation trivial — a user
// who changes their cadence or opts out between sweeps simply stops
// matching, and no stale timer can fire on their behalf.
type NotificationService interface {
	// ProcessDueReminders sends a reminder to every user whose latest
	// elapsed slot has not been served yet and who has topics due.
	ProcessDueReminders(ctx context.Context) error
}

type NotificationServiceImpl struct {
	users    learner.UserRepository
	progress learner.ProgressRepository
	client   notify.Client
	cfg      mastery.Config
	logger   *logrus.Entry

	// now is replaceable in tests.
	now func() time.Time
}

func NewNotificationService(
	users learner.UserRepository,
	progress learner.ProgressRepository,
	client notify.Client,
	cfg mastery.Config,
	logger *logrus.Entry,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		users:    users,
		progress: progress,
		client:   client,
		cfg:      mastery.NewScorer(cfg).Config(),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *NotificationServiceImpl) ProcessDueReminders(ctx context.Context) error {
	users, err := s.users.ListNotifiable(ctx)
	if err != nil {
		return fmt.Errorf("failed to list notifiable users: %w", err)
	}

	now := s.now()
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.remindUser(ctx, user, now); err != nil {
			// One user's failure must not starve the rest of the sweep.
			s.logger.WithError(err).WithField("user_id", user.ID).Error("Reminder dispatch failed")
		}
	}
	return nil
}

func (s *NotificationServiceImpl) remindUser(ctx context.Context, user *learner.User, now time.Time) error {
	slot, ok := plan.LastElapsedSlot(user, now)
	if !ok {
		return nil // nothing scheduled yet today
	}
	if user.LastNotifiedAt.Valid && !user.LastNotifiedAt.Time.Before(slot) {
		return nil // this slot was already served
	}

	records, err := s.progress.ListByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}
	dueCount := 0
	for _, rec := range records {
		if rec.Due(now, s.cfg.RetainedThreshold) {
			dueCount++
		}
	}
	if dueCount == 0 {
		// Nothing due; mark the slot served so the user is not pinged
		// later in the window for topics that became due mid-day.
		return s.users.MarkNotified(ctx, user.ID, slot)
	}

	text := fmt.Sprintf("📚 Time to practice! You have %d topic(s) due for review. Send /lesson to start.", dueCount)
	if err := s.client.SendMessage(user.TelegramID, text); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	if err := s.users.MarkNotified(ctx, user.ID, slot); err != nil {
		return fmt.Errorf("failed to mark user notified: %w", err)
	}
	s.logger.WithField("user_id", user.ID).WithField("due_count", dueCount).Info("Reminder sent")
	return nil
}
