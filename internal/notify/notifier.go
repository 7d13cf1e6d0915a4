// Package notify holds the in-app notification sink and the outbound
// messenger gateway client.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/aquaa/markly/internal/model"
	"github.com/aquaa/markly/internal/store"
)

// Notification severities.
const (
	SeveritySuccess = "SUCCESS"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
	SeverityInfo    = "INFO"
)

// Notifier appends human-readable operation summaries to the in-app
// notification log. Recording is fire-and-forget: failures are logged
// and never affect the calling operation.
type Notifier struct {
	store *store.Store
	log   *slog.Logger
}

func NewNotifier(st *store.Store) *Notifier {
	return &Notifier{store: st, log: slog.Default().With("component", "notifier")}
}

// Record writes one log entry. Errors are swallowed.
func (n *Notifier) Record(ctx context.Context, title, message, severity string) {
	if n == nil || n.store == nil {
		return
	}
	entry := &model.Notification{
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
		Severity:  severity,
	}
	if _, err := n.store.InsertNotification(ctx, entry); err != nil {
		n.log.Error("record notification failed", "title", title, "err", err)
	}
}
