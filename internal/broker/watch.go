package broker

import (
	"context"
	"sync"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
)

// Watch starts a live query on topic. It listens first, then delivers load's
// initial snapshot, then reloads and delivers on every notification.
//
// Terminal errors (see apperrors.IsTerminal) are delivered to onError and end
// the watch. Other errors are delivered as transient and the watch continues.
// Callbacks run on the watch goroutine, one at a time.
//
// The returned cancel is idempotent. It waits for the goroutine to exit, so no
// callback runs after it returns; callbacks must not block on the caller of cancel.
func Watch[T any](
	ctx context.Context,
	n Notifier,
	topic string,
	load func(ctx context.Context) (T, error),
	onChange func(T),
	onError func(error),
) (cancel func()) {
	ctx, stop := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		listener, err := n.Listen(ctx, topic)
		if err != nil {
			if ctx.Err() == nil {
				onError(apperrors.Transient(err))
			}
			return
		}
		defer listener.Close()

		if !deliver(ctx, load, onChange, onError) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-listener.C():
				if !ok {
					if ctx.Err() == nil {
						onError(apperrors.Transient(ErrClosed))
					}
					return
				}
				if !deliver(ctx, load, onChange, onError) {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done
		})
	}
}

// deliver reports whether the watch should keep running.
func deliver[T any](ctx context.Context, load func(context.Context) (T, error), onChange func(T), onError func(error)) bool {
	value, err := load(ctx)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		if apperrors.IsTerminal(err) {
			onError(err)
			return false
		}
		onError(apperrors.Transient(err))
		return true
	}
	onChange(value)
	return true
}
