package notify

import (
	"context"

	"github.com/garyjia/travel-desk/internal/application/port"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the application log. It is the
// default channel when no external delivery is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Name implements port.Notifier
func (l *LogNotifier) Name() string {
	return "log"
}

// Notify implements port.Notifier
func (l *LogNotifier) Notify(ctx context.Context, n port.Notification) error {
	cc := make([]string, 0, len(n.CC))
	for _, r := range n.CC {
		cc = append(cc, r.Email)
	}

	l.logger.Info("Notification",
		zap.String("to", n.Recipient.Email),
		zap.Strings("cc", cc),
		zap.String("subject", n.Subject),
		zap.String("reference_code", n.Trip.ReferenceCode),
		zap.String("status", n.Trip.Status),
		zap.String("action_link", n.ActionLink),
		zap.String("body", Render(n)))
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
