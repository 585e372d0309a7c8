package app

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"rust_mentor_bot/internal/domain/learner"
	idb "rust_mentor_bot/internal/infra/database"
	"rust_mentor_bot/internal/mastery"
)

// fakeNotifier records sent reminders.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []int64
}

func (n *fakeNotifier) SendMessage(recipientChatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recipientChatID)
	return nil
}

func (n *fakeNotifier) sentTo() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.sent...)
}

type notifFixture struct {
	svc      *NotificationServiceImpl
	users    *idb.MemoryUserRepository
	progress *idb.MemoryProgressRepository
	notifier *fakeNotifier
}

// noon falls after the second of two slots in an 08:00-21:00 window.
var noon = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newNotifFixture(t *testing.T) *notifFixture {
	t.Helper()
	users := idb.NewMemoryUserRepository()
	progress := idb.NewMemoryProgressRepository()
	notifier := &fakeNotifier{}
	svc := NewNotificationService(users, progress, notifier, mastery.Config{}, testLogger())
	svc.now = func() time.Time { return noon }
	return &notifFixture{svc: svc, users: users, progress: progress, notifier: notifier}
}

func (f *notifFixture) seedUser(t *testing.T, telegramID int64, enabled bool) *learner.User {
	t.Helper()
	user := &learner.User{
		TelegramID:           telegramID,
		FirstName:            "Learner",
		Frequency:            2,
		WindowStartMinute:    8 * 60,
		WindowEndMinute:      21 * 60,
		NotificationsEnabled: enabled,
	}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (f *notifFixture) seedDue(t *testing.T, userID, topicID int64) {
	t.Helper()
	rec := &learner.ProgressRecord{
		UserID: userID, TopicID: topicID, Mastery: 0.4, Attempts: 1,
		LastReviewedAt: noon.Add(-48 * time.Hour), NextDueAt: noon.Add(-time.Hour),
	}
	if err := f.progress.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed progress: %v", err)
	}
}

func TestSweepRemindsUsersWithDueTopics(t *testing.T) {
	f := newNotifFixture(t)
	user := f.seedUser(t, 42, true)
	f.seedDue(t, user.ID, 1)

	if err := f.svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("ProcessDueReminders: %v", err)
	}
	if sent := f.notifier.sentTo(); len(sent) != 1 || sent[0] != 42 {
		t.Fatalf("sent to %v, want [42]", sent)
	}

	stored, _ := f.users.GetByID(context.Background(), user.ID)
	if !stored.LastNotifiedAt.Valid {
		t.Error("reminder not recorded on the user")
	}
}

func TestSweepIsIdempotentPerSlot(t *testing.T) {
	f := newNotifFixture(t)
	user := f.seedUser(t, 42, true)
	f.seedDue(t, user.ID, 1)

	for i := 0; i < 3; i++ {
		if err := f.svc.ProcessDueReminders(context.Background()); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
	}
	if sent := f.notifier.sentTo(); len(sent) != 1 {
		t.Fatalf("sent %d reminders for one slot, want 1", len(sent))
	}
}

func TestSweepSkipsDisabledUsers(t *testing.T) {
	f := newNotifFixture(t)
	user := f.seedUser(t, 42, false)
	f.seedDue(t, user.ID, 1)

	if err := f.svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("ProcessDueReminders: %v", err)
	}
	if sent := f.notifier.sentTo(); len(sent) != 0 {
		t.Fatalf("sent to %v despite notifications disabled", sent)
	}
}

func TestSweepSilentWhenNothingDue(t *testing.T) {
	f := newNotifFixture(t)
	user := f.seedUser(t, 42, true)
	rec := &learner.ProgressRecord{
		UserID: user.ID, TopicID: 1, Mastery: 0.4, Attempts: 1,
		LastReviewedAt: noon.Add(-time.Hour), NextDueAt: noon.Add(24 * time.Hour),
	}
	if err := f.progress.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	if err := f.svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("ProcessDueReminders: %v", err)
	}
	if sent := f.notifier.sentTo(); len(sent) != 0 {
		t.Fatalf("sent to %v with nothing due", sent)
	}
	// The slot still counts as served.
	stored, _ := f.users.GetByID(context.Background(), user.ID)
	if !stored.LastNotifiedAt.Valid {
		t.Error("empty slot not marked served")
	}
}

func TestSweepOutsideWindowDoesNothing(t *testing.T) {
	f := newNotifFixture(t)
	user := f.seedUser(t, 42, true)
	f.seedDue(t, user.ID, 1)
	f.svc.now = func() time.Time {
		return time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC) // before the window opens
	}

	if err := f.svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("ProcessDueReminders: %v", err)
	}
	if sent := f.notifier.sentTo(); len(sent) != 0 {
		t.Fatalf("sent to %v before any slot elapsed", sent)
	}
}

func TestSweepServesSecondSlotLaterInDay(t *testing.T) {
	f := newNotifFixture(t)
	user := f.seedUser(t, 42, true)
	f.seedDue(t, user.ID, 1)

	// Served at the 08:00 slot; the 14:30 slot has not elapsed at noon.
	if err := f.svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}

	// Later in the day the second slot elapses and gets its own reminder.
	f.svc.now = func() time.Time {
		return time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	}
	if err := f.svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if sent := f.notifier.sentTo(); len(sent) != 2 {
		t.Fatalf("sent %d reminders across two slots, want 2", len(sent))
	}
}

func TestSweepContinuesPastFailingUser(t *testing.T) {
	f := newNotifFixture(t)
	broken := f.seedUser(t, 41, true)
	healthy := f.seedUser(t, 42, true)
	f.seedDue(t, broken.ID, 1)
	f.seedDue(t, healthy.ID, 1)

	// Fail delivery for the broken user only; the set is unordered so the
	// failure has to target the chat, not the call position.
	f.svc.client = clientFunc(func(chatID int64, text string) error {
		if chatID == broken.TelegramID {
			return errors.New("telegram unreachable")
		}
		return f.notifier.SendMessage(chatID, text)
	})

	if err := f.svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("ProcessDueReminders: %v", err)
	}
	if sent := f.notifier.sentTo(); len(sent) != 1 {
		t.Fatalf("sent %d reminders, want 1 (the healthy user)", len(sent))
	}

	// The failed user keeps an unserved slot so the next sweep retries.
	stored, _ := f.users.GetByID(context.Background(), broken.ID)
	if stored.LastNotifiedAt != (sql.NullTime{}) {
		t.Error("failed delivery marked the slot served")
	}
}

// clientFunc adapts a function to the notify.Client interface.
type clientFunc func(recipientChatID int64, text string) error

func (f clientFunc) SendMessage(recipientChatID int64, text string) error {
	return f(recipientChatID, text)
}
