package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/packing-qr-api/pkg/jobs"
)

// Notification kinds.
const (
	NotificationCodesIssued      = "codes_issued"
	NotificationCodeRegenerated  = "code_regenerated"
	NotificationDocumentExported = "document_exported"
)

// Notification is an event forwarded to an external collaborator.
type Notification struct {
	Kind         string    `json:"kind"`
	ShipmentCode string    `json:"shipment_code"`
	ArticleID    int64     `json:"article_id,omitempty"`
	Count        int       `json:"count,omitempty"`
	URL          string    `json:"url,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	At           time.Time `json:"at"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. It is the default delivery channel.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify logs n.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Info("notification",
		zap.String("kind", note.Kind),
		zap.String("shipment", note.ShipmentCode),
		zap.Int64("article_id", note.ArticleID),
		zap.Int("count", note.Count),
		zap.String("url", note.URL),
		zap.String("actor", note.Actor))
	return nil
}

// NotificationDispatcher hands notifications to a worker pool so delivery never
// blocks the operation that produced them.
type NotificationDispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationDispatcher builds a dispatcher delivering through notifier.
func NewNotificationDispatcher(notifier Notifier, cfg jobs.QueueConfig) *NotificationDispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		note, ok := job.Payload.(Notification)
		if !ok {
			return fmt.Errorf("unexpected notification payload %T", job.Payload)
		}
		return notifier.Notify(ctx, note)
	}
	return &NotificationDispatcher{
		queue:  jobs.NewQueue("notifications", handler, cfg),
		logger: cfg.Logger,
	}
}

// Start launches the workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *NotificationDispatcher) Stop() {
	d.queue.Stop()
}

// Publish enqueues n; a full or stopped queue drops it with a warning.
func (d *NotificationDispatcher) Publish(n Notification) {
	if d == nil {
		return
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	if err := d.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: n.Kind, Payload: n}); err != nil {
		d.logger.Warn("notification dropped", zap.String("kind", n.Kind), zap.Error(err))
	}
}
