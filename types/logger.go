package types

// Logger is the structured logger used throughout switchyard.
//
// Messages carry alternating key/value pairs, matching the convention of
// zerolog, zap and slog adapters. Implementations must be safe for
// concurrent use.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Fatal(msg string, keysAndValues ...any)
}

// Level is the severity of a user notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier delivers user-visible notifications.
//
// Notify is fire-and-forget: it must not block the caller for long and its
// outcome is never consumed.
type Notifier interface {
	Notify(message string, level Level)
}

// Notification is a single user-visible message.
type Notification struct {
	// ID uniquely identifies the notification.
	ID string

	// Message is the human readable text.
	Message string

	// Level is the severity.
	Level Level

	// Timestamp is the creation time in Unix microseconds.
	Timestamp int64
}
