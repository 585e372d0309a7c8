package notify

// Client defines an interface for pushing messages to a user outside a
// live interaction (study reminders). It decouples the application logic
// from the bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string) error
}
