package cascade

import (
	"context"
	"log/slog"
)

// LogChannel is a Channel that only logs the deletions it's asked for. It stands in for the upstream item store
// when none is wired, e.g. when the daemon runs standalone.
type LogChannel struct {
	Name   string
	Logger *slog.Logger // Falls back to slog.Default() if nil.
}

var _ Channel = (*LogChannel)(nil)

// DeleteItem logs the deletion request and reports success.
func (l *LogChannel) DeleteItem(_ context.Context, id uint64) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Would delete item.", "channel", l.Name, "item", id)
	return nil
}
