package pending

import (
	"context"
	"log/slog"

	"github.com/mcoot/townserver/internal/model"
)

// Notifier is told about every moderation transition
type Notifier interface {
	Notify(ctx context.Context, event model.PendingEvent) error
}

// LogNotifier writes events to the log
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event model.PendingEvent) error {
	n.logger.InfoContext(ctx, "pending town event",
		"kind", string(event.Kind),
		"id", event.ID,
		"email", event.Email,
		"target_email", event.TargetEmail,
		"reason", event.Reason,
	)
	return nil
}

// MultiNotifier fans an event out to several notifiers and returns the first error
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event model.PendingEvent) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
