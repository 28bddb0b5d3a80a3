package ai

import (
	"context"
	"fmt"
)

type boundedCompleter struct {
	inner Completer
}

// Bounded runs every call on its own goroutine and returns as soon as ctx is
// done, even if the underlying call is still blocked. Panics become errors.
func Bounded(inner Completer) Completer {
	return boundedCompleter{inner: inner}
}

type completion struct {
	reply string
	err   error
}

func (b boundedCompleter) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	done := make(chan completion, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- completion{err: fmt.Errorf("model call panicked: %v", r)}
			}
		}()
		reply, err := b.inner.Complete(ctx, messages)
		done <- completion{reply: reply, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case c := <-done:
		return c.reply, c.err
	}
}
