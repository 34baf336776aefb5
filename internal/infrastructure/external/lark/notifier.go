package lark

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/infrastructure/external/notify"
	"go.uber.org/zap"
)

// Notifier delivers notifications as Lark direct messages. Recipients
// without a Lark open_id are skipped.
type Notifier struct {
	messenger *Messenger
	logger    *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(messenger *Messenger, logger *zap.Logger) *Notifier {
	return &Notifier{
		messenger: messenger,
		logger:    logger,
	}
}

// Name implements port.Notifier
func (n *Notifier) Name() string {
	return "lark"
}

// Notify implements port.Notifier. Notifications with an action link go out
// as post messages so the link is clickable.
func (n *Notifier) Notify(ctx context.Context, msg port.Notification) error {
	deliver := n.textSender(msg)
	if msg.ActionLink != "" {
		deliver = n.postSender(msg)
	}

	recipients := append([]port.Recipient{msg.Recipient}, msg.CC...)

	var errs []error
	sent := 0
	for _, r := range recipients {
		if r.LarkOpenID == "" {
			continue
		}
		if _, err := deliver(ctx, r.LarkOpenID); err != nil {
			errs = append(errs, fmt.Errorf("lark %s: %w", r.LarkOpenID, err))
			continue
		}
		sent++
	}

	if sent == 0 && len(errs) == 0 {
		n.logger.Debug("No Lark recipients for notification",
			zap.String("subject", msg.Subject),
			zap.String("reference_code", msg.Trip.ReferenceCode))
	}

	return errors.Join(errs...)
}

type sender func(ctx context.Context, openID string) (string, error)

func (n *Notifier) textSender(msg port.Notification) sender {
	text := msg.Subject + "\n\n" + notify.Render(msg)
	return func(ctx context.Context, openID string) (string, error) {
		return n.messenger.SendText(ctx, openID, text)
	}
}

func (n *Notifier) postSender(msg port.Notification) sender {
	bare := msg
	bare.ActionLink = ""
	lines := strings.Split(notify.Render(bare), "\n")
	link := &PostLink{Text: "Review request", Href: msg.ActionLink}
	return func(ctx context.Context, openID string) (string, error) {
		return n.messenger.SendPost(ctx, openID, msg.Subject, lines, link)
	}
}

var _ port.Notifier = (*Notifier)(nil)
