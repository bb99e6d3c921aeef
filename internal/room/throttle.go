package room

import (
	"context"
	"time"

	"github.com/sgr-room/matchd/internal/hostdriver"
)

const (
	chatBucketSize   = 6
	chatRefillPeriod = 4 * time.Second
)

// chatThrottle is a FIFO queue drained through a fixed-capacity token
// bucket, generalized from the per-connection token bucket in the teacher's
// rate limiter down to the single stream spec §4.2 describes: one room, one
// bucket, refilled one token every 4s up to a burst of 6.
type chatThrottle struct {
	pending []string
	tokens  int
}

func newChatThrottle() *chatThrottle {
	return &chatThrottle{tokens: chatBucketSize}
}

// Enqueue appends msg to the FIFO. It waits for the next Drain (the run
// loop's chat_interval tick, at most chatRefillPeriod away) rather than
// sending immediately.
func (t *chatThrottle) Enqueue(msg string) {
	t.pending = append(t.pending, msg)
}

// Refill grants one credit, capped at chatBucketSize: unspent credits from
// earlier chat_interval ticks accumulate into a burst budget. Ticks the run
// loop's time.Ticker drops while the loop is busy are not made up.
func (t *chatThrottle) Refill() {
	if t.tokens < chatBucketSize {
		t.tokens++
	}
}

// Drain sends as many queued messages as there are tokens, via send.
func (t *chatThrottle) Drain(ctx context.Context, send func(ctx context.Context, msg string) error) {
	for t.tokens > 0 && len(t.pending) > 0 {
		msg := t.pending[0]
		if err := send(ctx, msg); err != nil {
			return
		}
		t.pending = t.pending[1:]
		t.tokens--
	}
}

// chatSink sends the throttle's output to a Driver.
func chatSink(d hostdriver.Driver) func(ctx context.Context, msg string) error {
	return func(ctx context.Context, msg string) error {
		return d.Chat(ctx, msg)
	}
}
