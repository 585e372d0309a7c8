package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rust_mentor_bot/internal/app"
	"rust_mentor_bot/internal/domain/learner"
	idb "rust_mentor_bot/internal/infra/database"
	"rust_mentor_bot/internal/plan"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterLessonCommands wires the learner-facing commands onto the bot.
func RegisterLessonCommands(
	ctx context.Context,
	b *telebot.Bot,
	sessions *app.SessionService,
	baseLogger *logrus.Entry,
) {
	cmdLogger := baseLogger.WithField("handler_group", "lesson_commands")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := cmdLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		user, err := sessions.EnsureUser(ctx, senderID, c.Sender().FirstName, c.Sender().Username)
		if err != nil {
			logCtx.WithError(err).Error("Error registering user for /start command")
			return c.Send("Something went wrong while setting up your profile. Please try again later.")
		}
		return c.Send(fmt.Sprintf(
			"Hi %s! I'm your Rust learning companion. 🦀\n\n"+
				"I'll teach you Rust one small lesson at a time and remind you when a topic is due for review.\n\n"+
				"Send /lesson to get your first lesson, or /help to see everything I can do.",
			user.FirstName))
	})

	b.Handle("/help", func(c telebot.Context) error {
		var helpText strings.Builder
		helpText.WriteString("Available commands:\n\n")
		helpText.WriteString("`/lesson` - Get the lesson I think you need most right now.\n")
		helpText.WriteString("`/lesson <topic>` - Get a lesson on a specific topic, e.g. `/lesson ownership`.\n")
		helpText.WriteString("`/mini` - Get a quick free-form mini lesson.\n")
		helpText.WriteString("`/progress` - See your mastery, streak and achievements.\n")
		helpText.WriteString("`/settings` - View or change reminder preferences.\n")
		helpText.WriteString("`/help` - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/lesson", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := cmdLogger.WithField("command", "/lesson").WithField("sender_id", senderID)
		logCtx.Info("Processing /lesson command")

		slug := strings.ToLower(strings.TrimSpace(c.Message().Payload))
		res, err := sessions.StartSession(ctx, senderID, c.Sender().FirstName, c.Sender().Username, slug)
		if err != nil {
			if errors.Is(err, idb.ErrTopicNotFound) {
				return c.Send(fmt.Sprintf("I don't know a topic called %q. Send /progress to see the catalog you've touched so far, or /lesson without arguments and I'll pick for you.", slug))
			}
			logCtx.WithError(err).Error("Error starting session")
			return c.Send("Something went wrong while preparing your lesson. Please try again later.")
		}
		return sendLesson(c, res)
	})

	b.Handle("/mini", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := cmdLogger.WithField("command", "/mini").WithField("sender_id", senderID)
		logCtx.Info("Processing /mini command")

		res, err := sessions.MiniLesson(ctx, senderID, c.Sender().FirstName, c.Sender().Username)
		if err != nil {
			logCtx.WithError(err).Error("Error starting mini lesson")
			return c.Send("Something went wrong while preparing your mini lesson. Please try again later.")
		}
		return sendLesson(c, res)
	})

	b.Handle("/progress", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := cmdLogger.WithField("command", "/progress").WithField("sender_id", senderID)
		logCtx.Info("Processing /progress command")

		if _, err := sessions.EnsureUser(ctx, senderID, c.Sender().FirstName, c.Sender().Username); err != nil {
			logCtx.WithError(err).Error("Error registering user for /progress command")
			return c.Send("Something went wrong. Please try again later.")
		}
		report, err := sessions.ProgressReport(ctx, senderID)
		if err != nil {
			logCtx.WithError(err).Error("Error building progress report")
			return c.Send("Something went wrong while building your report. Please try again later.")
		}
		return c.Send(formatReport(report), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/settings", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := cmdLogger.WithField("command", "/settings").WithField("sender_id", senderID)
		logCtx.Info("Processing /settings command")

		user, err := sessions.EnsureUser(ctx, senderID, c.Sender().FirstName, c.Sender().Username)
		if err != nil {
			logCtx.WithError(err).Error("Error loading user for /settings command")
			return c.Send("Something went wrong. Please try again later.")
		}

		payload := strings.TrimSpace(c.Message().Payload)
		if payload != "" {
			return applySettingsPayload(ctx, c, sessions, user, payload)
		}

		state := "on"
		if !user.NotificationsEnabled {
			state = "off"
		}
		text := fmt.Sprintf(
			"Your reminder settings:\n\n"+
				"Reminders per day: %d\n"+
				"Quiet outside: %s - %s\n"+
				"Notifications: %s\n\n"+
				"Change the window with `/settings 09:00 18:00`, or use the buttons below.",
			user.Frequency, formatMinute(user.WindowStartMinute), formatMinute(user.WindowEndMinute), state)
		return c.Send(text, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown, ReplyMarkup: settingsKeyboard(user)})
	})
}

// applySettingsPayload handles "/settings HH:MM HH:MM" to move the window.
func applySettingsPayload(ctx context.Context, c telebot.Context, sessions *app.SessionService, user *learner.User, payload string) error {
	fields := strings.Fields(payload)
	if len(fields) != 2 {
		return c.Send("To change your reminder window send both times, e.g. `/settings 09:00 18:00`.", &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
	start, err1 := parseClock(fields[0])
	end, err2 := parseClock(fields[1])
	if err1 != nil || err2 != nil {
		return c.Send("I couldn't read those times. Use 24-hour HH:MM, e.g. `/settings 09:00 18:00`.", &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
	if err := sessions.UpdatePreferences(ctx, user.TelegramID, user.Frequency, start, end, user.NotificationsEnabled); err != nil {
		if errors.Is(err, learner.ErrInvalidPreferences) {
			return c.Send("That window doesn't work: the start has to come before the end.")
		}
		return c.Send("Something went wrong while saving your settings. Please try again later.")
	}
	return c.Send(fmt.Sprintf("Done! I'll only remind you between %s and %s.", formatMinute(start), formatMinute(end)))
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return h*60 + m, nil
}

func formatMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// settingsKeyboard offers frequency choices and the notification toggle.
func settingsKeyboard(user *learner.User) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	freqRow := make([]telebot.Btn, 0, learner.MaxFrequency)
	for f := learner.MinFrequency; f <= learner.MaxFrequency; f++ {
		label := fmt.Sprintf("%d/day", f)
		if f == user.Frequency {
			label = "• " + label
		}
		freqRow = append(freqRow, markup.Data(label, "freq", strconv.Itoa(f)))
	}
	var toggle telebot.Btn
	if user.NotificationsEnabled {
		toggle = markup.Data("🔕 Pause reminders", "notif", "off")
	} else {
		toggle = markup.Data("🔔 Resume reminders", "notif", "on")
	}
	markup.Inline(markup.Row(freqRow...), markup.Row(toggle))
	return markup
}

// sendLesson formats a started session and attaches outcome buttons. A
// degraded session is already closed, so no buttons are offered for it.
func sendLesson(c telebot.Context, res *app.StartResult) error {
	var text strings.Builder
	if res.Topic != nil {
		switch res.Reason {
		case plan.ReasonReview:
			text.WriteString(fmt.Sprintf("🔁 Time to review *%s*\n\n", res.Topic.Title))
		default:
			text.WriteString(fmt.Sprintf("🆕 New topic: *%s*\n\n", res.Topic.Title))
		}
	} else {
		text.WriteString(fmt.Sprintf("⚡ *%s*\n\n", res.Lesson.Title))
	}
	text.WriteString(res.Lesson.Body)
	if res.Lesson.Exercise != "" {
		text.WriteString("\n\n📝 *Exercise:* ")
		text.WriteString(res.Lesson.Exercise)
	}

	opts := &telebot.SendOptions{ParseMode: telebot.ModeMarkdown}
	if res.Degraded {
		text.WriteString("\n\n_(The lesson service is having trouble right now; this is a fallback. Try again in a few minutes.)_")
		return c.Send(text.String(), opts)
	}

	text.WriteString("\n\nHow did it go?")
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("✅ Got it", "out_ok", res.SessionID),
		markup.Data("🤔 Partly", "out_part", res.SessionID),
		markup.Data("❌ Struggled", "out_fail", res.SessionID),
	))
	opts.ReplyMarkup = markup
	return c.Send(text.String(), opts)
}

// formatReport renders the /progress summary.
func formatReport(report *app.Report) string {
	var text strings.Builder
	text.WriteString("📊 *Your Rust progress*\n\n")
	text.WriteString(fmt.Sprintf("Topics practiced: %d of %d\n", report.Attempted, report.TotalTopics))
	text.WriteString(fmt.Sprintf("Topics mastered: %d\n", report.Mastered))
	text.WriteString(fmt.Sprintf("Average mastery: %.0f%%\n", report.AverageMastery*100))
	text.WriteString(fmt.Sprintf("Due for review: %d\n", report.DueCount))
	text.WriteString(fmt.Sprintf("Daily streak: %d 🔥\n", report.StreakCount))
	if len(report.StrongTopics) > 0 {
		text.WriteString(fmt.Sprintf("\n💪 Strong: %s\n", strings.Join(report.StrongTopics, ", ")))
	}
	if len(report.WeakTopics) > 0 {
		text.WriteString(fmt.Sprintf("🎯 Needs work: %s\n", strings.Join(report.WeakTopics, ", ")))
	}
	if len(report.Achievements) > 0 {
		text.WriteString("\n🏆 Achievements:\n")
		for _, a := range report.Achievements {
			text.WriteString(fmt.Sprintf("  %s\n", achievementLabel(a.Kind)))
		}
	}
	return text.String()
}

func achievementLabel(kind learner.AchievementKind) string {
	switch kind {
	case learner.AchievementFirstLesson:
		return "🌱 First Lesson"
	case learner.AchievementStreak3Days:
		return "🔥 3-Day Streak"
	case learner.AchievementStreak7Days:
		return "🔥 7-Day Streak"
	case learner.AchievementStreak30Days:
		return "🔥 30-Day Streak"
	case learner.AchievementTopicMastery:
		return "🎓 Topic Mastered"
	case learner.AchievementPracticeMaster:
		return "💪 Practice Master"
	case learner.AchievementCodeWarrior:
		return "⚔️ Code Warrior"
	default:
		return string(kind)
	}
}
