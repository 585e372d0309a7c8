package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rust_mentor_bot/internal/app"
	"rust_mentor_bot/internal/domain/learner"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterOutcomeHandlers processes the inline-button callbacks: exercise
// outcome reports and the settings keyboard.
func RegisterOutcomeHandlers(
	ctx context.Context,
	b *telebot.Bot,
	sessions *app.SessionService,
	baseLogger *logrus.Entry,
) {
	logger := baseLogger.WithField("handler_group", "callbacks")

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		// telebot prefixes generated callback data with \f and separates
		// the unique tag from the payload with |.
		data := strings.TrimPrefix(c.Callback().Data, "\f")
		tag, payload, _ := strings.Cut(data, "|")

		switch tag {
		case "out_ok":
			return handleOutcome(ctx, c, sessions, logger, payload, learner.OutcomeSuccess)
		case "out_part":
			return handleOutcome(ctx, c, sessions, logger, payload, learner.OutcomePartial)
		case "out_fail":
			return handleOutcome(ctx, c, sessions, logger, payload, learner.OutcomeFailure)
		case "freq":
			return handleFrequency(ctx, c, sessions, logger, payload)
		case "notif":
			return handleNotifToggle(ctx, c, sessions, logger, payload)
		}

		logger.WithField("data", data).Warn("Unhandled callback")
		return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
	})
}

func handleOutcome(ctx context.Context, c telebot.Context, sessions *app.SessionService, logger *logrus.Entry, sessionID string, outcome learner.Outcome) error {
	logCtx := logger.WithField("session_id", sessionID).
		WithField("sender_id", c.Sender().ID).
		WithField("outcome", string(outcome))

	weight := 0.0
	if outcome == learner.OutcomePartial {
		weight = 0.5
	}
	result, err := sessions.ReportOutcome(ctx, sessionID, outcome, weight)
	if err != nil {
		logCtx.WithError(err).Error("Error recording outcome")
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, try again."})
	}
	if result.AlreadyClosed {
		return c.Respond(&telebot.CallbackResponse{Text: "Already recorded!"})
	}

	if err := c.Respond(&telebot.CallbackResponse{Text: "Recorded!"}); err != nil {
		logCtx.WithError(err).Warn("Failed to acknowledge callback")
	}

	var text strings.Builder
	switch outcome {
	case learner.OutcomeSuccess:
		text.WriteString("Nice work! ✅")
	case learner.OutcomePartial:
		text.WriteString("Good effort, we'll circle back to it. 🤔")
	default:
		text.WriteString("No worries, that's how learning works. ❌")
	}
	if !result.NextDueAt.IsZero() {
		text.WriteString(fmt.Sprintf("\nMastery: %.0f%%. Next review: %s.",
			result.Mastery*100, result.NextDueAt.Format("Mon, Jan 2")))
	}
	for _, a := range result.NewAchievements {
		text.WriteString(fmt.Sprintf("\n\n🏆 Achievement unlocked: %s!", achievementLabel(a.Kind)))
	}
	return c.Send(text.String())
}

func handleFrequency(ctx context.Context, c telebot.Context, sessions *app.SessionService, logger *logrus.Entry, payload string) error {
	senderID := c.Sender().ID
	logCtx := logger.WithField("sender_id", senderID).WithField("frequency", payload)

	freq, err := strconv.Atoi(payload)
	if err != nil {
		logCtx.WithError(err).Warn("Malformed frequency callback")
		return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
	}
	user, err := sessions.EnsureUser(ctx, senderID, c.Sender().FirstName, c.Sender().Username)
	if err != nil {
		logCtx.WithError(err).Error("Error loading user for frequency change")
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, try again."})
	}
	err = sessions.UpdatePreferences(ctx, senderID, freq, user.WindowStartMinute, user.WindowEndMinute, user.NotificationsEnabled)
	if err != nil {
		if errors.Is(err, learner.ErrInvalidPreferences) {
			return c.Respond(&telebot.CallbackResponse{Text: "That frequency isn't available."})
		}
		logCtx.WithError(err).Error("Error saving frequency")
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, try again."})
	}
	if err := c.Respond(&telebot.CallbackResponse{Text: "Saved!"}); err != nil {
		logCtx.WithError(err).Warn("Failed to acknowledge callback")
	}
	return c.Send(fmt.Sprintf("Got it, %d reminder(s) per day between %s and %s.",
		freq, formatMinute(user.WindowStartMinute), formatMinute(user.WindowEndMinute)))
}

func handleNotifToggle(ctx context.Context, c telebot.Context, sessions *app.SessionService, logger *logrus.Entry, payload string) error {
	senderID := c.Sender().ID
	logCtx := logger.WithField("sender_id", senderID).WithField("toggle", payload)

	user, err := sessions.EnsureUser(ctx, senderID, c.Sender().FirstName, c.Sender().Username)
	if err != nil {
		logCtx.WithError(err).Error("Error loading user for notification toggle")
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, try again."})
	}
	enabled := payload == "on"
	err = sessions.UpdatePreferences(ctx, senderID, user.Frequency, user.WindowStartMinute, user.WindowEndMinute, enabled)
	if err != nil {
		logCtx.WithError(err).Error("Error saving notification toggle")
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, try again."})
	}
	if err := c.Respond(&telebot.CallbackResponse{Text: "Saved!"}); err != nil {
		logCtx.WithError(err).Warn("Failed to acknowledge callback")
	}
	if enabled {
		return c.Send("Reminders are back on. 🔔")
	}
	return c.Send("Reminders paused. Send /settings whenever you want them back. 🔕")
}
