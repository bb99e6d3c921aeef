package room

import (
	"context"
	"errors"
	"testing"
)

func TestChatThrottle_BurstThenHold(t *testing.T) {
	th := newChatThrottle()
	for i := 0; i < 10; i++ {
		th.Enqueue("msg")
	}

	var sent []string
	send := func(ctx context.Context, msg string) error {
		sent = append(sent, msg)
		return nil
	}

	th.Drain(context.Background(), send)
	if len(sent) != chatBucketSize {
		t.Fatalf("expected %d messages sent on first drain, got %d", chatBucketSize, len(sent))
	}
	if len(th.pending) != 10-chatBucketSize {
		t.Fatalf("expected %d messages still pending, got %d", 10-chatBucketSize, len(th.pending))
	}

	// No tokens left: a second drain without a refill sends nothing more.
	th.Drain(context.Background(), send)
	if len(sent) != chatBucketSize {
		t.Fatalf("expected no additional sends without a refill, got %d total", len(sent))
	}
}

func TestChatThrottle_RefillCapsAtBucketSize(t *testing.T) {
	th := newChatThrottle()
	for i := 0; i < 20; i++ {
		th.Refill()
	}
	if th.tokens != chatBucketSize {
		t.Fatalf("expected tokens capped at %d, got %d", chatBucketSize, th.tokens)
	}
}

func TestChatThrottle_DrainStopsOnSendError(t *testing.T) {
	th := newChatThrottle()
	th.Enqueue("a")
	th.Enqueue("b")

	calls := 0
	send := func(ctx context.Context, msg string) error {
		calls++
		return errors.New("boom")
	}
	th.Drain(context.Background(), send)

	if calls != 1 {
		t.Fatalf("expected Drain to stop after the first error, got %d calls", calls)
	}
	if len(th.pending) != 2 {
		t.Fatalf("expected the failed message to remain queued, pending=%d", len(th.pending))
	}
}
