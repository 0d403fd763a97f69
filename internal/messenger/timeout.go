package messenger

import (
	"context"
	"time"
)

type boundedSender struct {
	next    Sender
	timeout time.Duration
}

// WithTimeout returns a Sender that gives each Send at most d.
func WithTimeout(s Sender, d time.Duration) Sender {
	if d <= 0 {
		return s
	}
	return &boundedSender{next: s, timeout: d}
}

func (b *boundedSender) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.Send(ctx, msg)
}
