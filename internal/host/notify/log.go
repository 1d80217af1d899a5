package notify

import (
	"context"
	"sync/atomic"

	"github.com/oshokin/alarm-clock/internal/logger"
)

// LogNotifier "displays" notifications as structured log records.
type LogNotifier struct {
	initialized atomic.Bool
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return new(LogNotifier)
}

// Initialize records the channel.
func (n *LogNotifier) Initialize(ctx context.Context, channel Channel) error {
	n.initialized.Store(true)

	logger.InfoKV(ctx, "Notification channel ready", "channel_id", channel.ID, "channel_name", channel.Name)

	return nil
}

// Show logs the message at info level.
func (n *LogNotifier) Show(ctx context.Context, msg Message, channel Channel) error {
	if !n.initialized.Load() {
		return ErrNotInitialized
	}

	logger.InfoKV(
		ctx,
		"ALARM",
		"notification_id", msg.ID,
		"title", msg.Title,
		"body", msg.Body,
		"sound", msg.SoundPath,
		"channel_id", channel.ID,
	)

	return nil
}
