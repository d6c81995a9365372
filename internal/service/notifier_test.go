package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/packing-qr-api/pkg/jobs"
)

type channelNotifier struct {
	mu   sync.Mutex
	got  []Notification
	done chan struct{}
}

func (c *channelNotifier) Notify(ctx context.Context, n Notification) error {
	c.mu.Lock()
	c.got = append(c.got, n)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func TestNotificationDispatcherDelivers(t *testing.T) {
	notifier := &channelNotifier{done: make(chan struct{}, 1)}
	dispatcher := NewNotificationDispatcher(notifier, jobs.QueueConfig{Workers: 1, BufferSize: 4})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	dispatcher.Publish(Notification{Kind: NotificationCodesIssued, ShipmentCode: exampleShipment, Count: 3})

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.got, 1)
	assert.Equal(t, 3, notifier.got[0].Count)
	assert.False(t, notifier.got[0].At.IsZero())
}

func TestNotificationDispatcherNilIsNoop(t *testing.T) {
	var dispatcher *NotificationDispatcher
	assert.NotPanics(t, func() { dispatcher.Publish(Notification{Kind: NotificationDocumentExported}) })
}

func TestLogNotifierNeverFails(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).Notify(context.Background(), Notification{Kind: NotificationCodeRegenerated}))
}
