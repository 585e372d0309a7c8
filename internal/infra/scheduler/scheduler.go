package scheduler

import (
	"context"
	"time"

	"rust_mentor_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReminderScheduler drives the periodic reminder-slot sweep. The sweep
// itself decides which users are due; the scheduler only provides the
// heartbeat.
type ReminderScheduler struct {
	cronEngine            *cron.Cron
	notifService          app.NotificationService
	logger                *logrus.Entry
	cronSpecReminderCheck string
}

func NewReminderScheduler(
	notifService app.NotificationService,
	logger *logrus.Entry,
	cronSpecReminderCheck string, // e.g., "*/5 * * * *" (every 5 minutes)
) *ReminderScheduler {
	return &ReminderScheduler{
		cronEngine:            cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		notifService:          notifService,
		logger:                logger,
		cronSpecReminderCheck: cronSpecReminderCheck,
	}
}

func (s *ReminderScheduler) Start() {
	s.logger.Info("Starting reminder scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecReminderCheck, func() {
		s.logger.Debug("Cron job triggered for reminder-slot sweep.")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.notifService.ProcessDueReminders(ctx); err != nil {
			s.logger.WithError(err).Error("Error during reminder-slot sweep")
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add reminder sweep cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Reminder scheduler started.")
}

func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // Stops new runs, waits for in-flight jobs.
	<-ctx.Done()
	s.logger.Info("Reminder scheduler gracefully stopped.")
}
