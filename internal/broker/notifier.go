// Package broker fans change notifications out to live watches.
//
// A notification carries no payload: it tells a watcher that the data behind a
// topic changed and should be reloaded. Notifications on one listener coalesce,
// so a slow watcher reloads once for a burst of writes.
package broker

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("broker closed")

// Notifier publishes and listens on topics.
type Notifier interface {
	Publish(ctx context.Context, topic string) error
	Listen(ctx context.Context, topic string) (Listener, error)
}

// Listener receives coalesced notifications for one topic. C is closed when the
// notifier shuts down.
type Listener interface {
	C() <-chan struct{}
	Close()
}

// UserTopic is notified whenever a conversation containing userID changes.
func UserTopic(userID string) string {
	return "user:" + userID
}

// ConversationTopic is notified whenever a message is appended to conversationID.
func ConversationTopic(conversationID string) string {
	return "conversation:" + conversationID
}

// PublishAll publishes every topic and joins the failures.
func PublishAll(ctx context.Context, n Notifier, topics ...string) error {
	var errs []error
	for _, topic := range topics {
		if err := n.Publish(ctx, topic); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// notify does a non-blocking send on a buffer-of-one channel.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
