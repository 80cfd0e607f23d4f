package notify

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/arloliu/switchyard/types"
)

// New builds a notification with a fresh id and the current time.
func New(message string, level types.Level) types.Notification {
	return types.Notification{
		ID:        ulid.Make().String(),
		Message:   message,
		Level:     level,
		Timestamp: time.Now().UnixMicro(),
	}
}
