package notify

import "github.com/arloliu/switchyard/types"

// Log writes notifications to a logger.
type Log struct {
	logger types.Logger
}

// Compile-time assertion that Log implements types.Notifier.
var _ types.Notifier = (*Log)(nil)

// NewLog creates a notifier logging through l.
func NewLog(l types.Logger) *Log {
	return &Log{logger: l}
}

// Notify logs message at the severity matching level.
func (l *Log) Notify(message string, level types.Level) {
	switch level {
	case types.LevelError:
		l.logger.Error(message, "notification", true)
	case types.LevelWarning:
		l.logger.Warn(message, "notification", true)
	default:
		l.logger.Info(message, "notification", true)
	}
}

// Fanout forwards each notification to every notifier in order.
type Fanout []types.Notifier

// Compile-time assertion that Fanout implements types.Notifier.
var _ types.Notifier = Fanout(nil)

// Notify forwards to all notifiers, skipping nil entries.
func (f Fanout) Notify(message string, level types.Level) {
	for _, n := range f {
		if n != nil {
			n.Notify(message, level)
		}
	}
}

// Func adapts a function to types.Notifier.
type Func func(message string, level types.Level)

// Notify calls f.
func (f Func) Notify(message string, level types.Level) {
	f(message, level)
}
