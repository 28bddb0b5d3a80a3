package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type completerFunc func(ctx context.Context, messages []ChatMessage) (string, error)

func (f completerFunc) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	return f(ctx, messages)
}

func TestBoundedReturnsOnCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	hanging := completerFunc(func(context.Context, []ChatMessage) (string, error) {
		<-release
		return "late", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Bounded(hanging).Complete(ctx, UserPrompt("q"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Complete() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Complete() did not return promptly")
	}
}

func TestBoundedRecoversPanic(t *testing.T) {
	boom := completerFunc(func(context.Context, []ChatMessage) (string, error) {
		panic("nil map")
	})
	_, err := Bounded(boom).Complete(context.Background(), UserPrompt("q"))
	if err == nil || !strings.Contains(err.Error(), "nil map") {
		t.Fatalf("Complete() error = %v", err)
	}
}

func TestBoundedPassesReply(t *testing.T) {
	ok := completerFunc(func(context.Context, []ChatMessage) (string, error) { return "SELECT 1", nil })
	got, err := Bounded(ok).Complete(context.Background(), UserPrompt("q"))
	if err != nil || got != "SELECT 1" {
		t.Fatalf("Complete() = %q, %v", got, err)
	}
}
