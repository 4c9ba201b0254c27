package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/valkey-io/valkey-go"
)

const valkeyChannelPrefix = "scenyx-dms:"

// ValkeyNotifier shares notifications between service instances through
// Valkey PUBLISH/SUBSCRIBE. Each listener holds a dedicated connection.
type ValkeyNotifier struct {
	client valkey.Client
	log    *slog.Logger
}

// NewValkeyNotifier wraps client. The caller closes client.
func NewValkeyNotifier(client valkey.Client, log *slog.Logger) *ValkeyNotifier {
	return &ValkeyNotifier{
		client: client,
		log:    log.With(slog.String(logging.ComponentField, "valkey-notifier")),
	}
}

func (n *ValkeyNotifier) Publish(ctx context.Context, topic string) error {
	cmd := n.client.B().Publish().Channel(valkeyChannelPrefix + topic).Message("changed").Build()
	return n.client.Do(ctx, cmd).Error()
}

// Listen returns once the SUBSCRIBE has been acknowledged, so a publish issued
// after Listen returns is never missed.
func (n *ValkeyNotifier) Listen(ctx context.Context, topic string) (Listener, error) {
	conn, release := n.client.Dedicate()
	l := &valkeyListener{ch: make(chan struct{}, 1), conn: conn, release: release}
	wait := conn.SetPubSubHooks(valkey.PubSubHooks{
		OnMessage: func(valkey.PubSubMessage) {
			l.mu.Lock()
			defer l.mu.Unlock()
			if !l.closed {
				notify(l.ch)
			}
		},
	})

	channel := valkeyChannelPrefix + topic
	if err := conn.Do(ctx, conn.B().Subscribe().Channel(channel).Build()).Error(); err != nil {
		release()
		return nil, err
	}

	go func() {
		err := <-wait
		if err != nil && !errors.Is(err, valkey.ErrClosing) {
			n.log.Warn("valkey subscription ended",
				slog.String(logging.TopicField, topic),
				slog.String(logging.ErrorMsgField, err.Error()))
		}
		l.shutdown()
	}()
	return l, nil
}

type valkeyListener struct {
	mu      sync.Mutex
	closed  bool
	ch      chan struct{}
	conn    valkey.DedicatedClient
	release func()
	once    sync.Once
}

func (l *valkeyListener) C() <-chan struct{} {
	return l.ch
}

// Close unsubscribes and returns the connection to the pool.
func (l *valkeyListener) Close() {
	l.once.Do(func() {
		l.conn.SetPubSubHooks(valkey.PubSubHooks{})
		l.release()
	})
	l.shutdown()
}

func (l *valkeyListener) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}

var _ Notifier = (*ValkeyNotifier)(nil)
