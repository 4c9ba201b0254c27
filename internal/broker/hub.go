package broker

import (
	"context"
	"sync"
)

type subscriber struct {
	topic string
	ch    chan struct{}
}

type broadcast struct {
	topic string
}

// Hub is the in-process Notifier. All subscriber bookkeeping happens on the
// Run goroutine.
type Hub struct {
	subscribers map[string]map[*subscriber]bool // topic -> subscribers
	register    chan *subscriber
	unregister  chan *subscriber
	broadcast   chan broadcast
	done        chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*subscriber]bool),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		broadcast:   make(chan broadcast),
		done:        make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled. On exit every listener channel is
// closed and further calls fail with ErrClosed.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for _, subs := range h.subscribers {
			for sub := range subs {
				close(sub.ch)
			}
		}
		h.subscribers = nil
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-h.register:
			if h.subscribers[sub.topic] == nil {
				h.subscribers[sub.topic] = make(map[*subscriber]bool)
			}
			h.subscribers[sub.topic][sub] = true
		case sub := <-h.unregister:
			if subs, ok := h.subscribers[sub.topic]; ok {
				if _, ok := subs[sub]; ok {
					delete(subs, sub)
					close(sub.ch)
				}
				if len(subs) == 0 {
					delete(h.subscribers, sub.topic)
				}
			}
		case msg := <-h.broadcast:
			for sub := range h.subscribers[msg.topic] {
				notify(sub.ch)
			}
		}
	}
}

func (h *Hub) Publish(ctx context.Context, topic string) error {
	select {
	case h.broadcast <- broadcast{topic: topic}:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Listen(ctx context.Context, topic string) (Listener, error) {
	sub := &subscriber{topic: topic, ch: make(chan struct{}, 1)}
	select {
	case h.register <- sub:
		return &hubListener{hub: h, sub: sub}, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type hubListener struct {
	hub  *Hub
	sub  *subscriber
	once sync.Once
}

func (l *hubListener) C() <-chan struct{} {
	return l.sub.ch
}

func (l *hubListener) Close() {
	l.once.Do(func() {
		select {
		case l.hub.unregister <- l.sub:
		case <-l.hub.done:
		}
	})
}

var _ Notifier = (*Hub)(nil)
