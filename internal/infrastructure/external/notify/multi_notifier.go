package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/travel-desk/internal/application/port"
)

// MultiNotifier delivers every notification on all of its channels. A
// failing channel does not stop the others.
type MultiNotifier struct {
	channels []port.Notifier
}

// NewMultiNotifier fans out to channels in order
func NewMultiNotifier(channels ...port.Notifier) *MultiNotifier {
	return &MultiNotifier{channels: channels}
}

// Name implements port.Notifier
func (m *MultiNotifier) Name() string {
	names := make([]string, 0, len(m.channels))
	for _, c := range m.channels {
		names = append(names, c.Name())
	}
	return strings.Join(names, "+")
}

// Notify implements port.Notifier
func (m *MultiNotifier) Notify(ctx context.Context, n port.Notification) error {
	var errs []error
	for _, c := range m.channels {
		if err := c.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var _ port.Notifier = (*MultiNotifier)(nil)
