// Package broadcast fans an operator-authored message out to every active
// subscriber at a capped send rate.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Subscribers is the store surface the dispatcher reads.
type Subscribers interface {
	ListActiveSubscribers(ctx context.Context) ([]*domain.Subscriber, error)
	CountSubscribers(ctx context.Context) (int, error)
	CountActiveSubscribers(ctx context.Context) (int, error)
}

// Config tunes a Dispatcher.
type Config struct {
	// Delay is the minimum spacing between sends across all workers.
	Delay time.Duration
	// Workers is the number of concurrent senders.
	Workers int
	// SendTimeout bounds each individual send.
	SendTimeout time.Duration
}

// Report is the outcome of one broadcast. Success + Failure == Total.
type Report struct {
	ID       string
	Success  int
	Failure  int
	Total    int
	Duration time.Duration
}

// Stats are subscriber counts for the operator view.
type Stats struct {
	Total  int
	Active int
}

// Dispatcher sends broadcasts. Per-recipient failures are counted, never retried.
type Dispatcher struct {
	subs   Subscribers
	sender messenger.Sender
	cfg    Config
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(subs Subscribers, sender messenger.Sender, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Dispatcher{subs: subs, sender: messenger.WithTimeout(sender, cfg.SendTimeout), cfg: cfg}
}

func (d *Dispatcher) limiter() *rate.Limiter {
	if d.cfg.Delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d.cfg.Delay), 1)
}

// Dispatch sends text to every active subscriber. The only error is a
// failure to load the subscriber list. If ctx ends midway, recipients not
// yet reached are counted as failures.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) (Report, error) {
	start := time.Now()
	rep := Report{ID: uuid.NewString()}

	subs, err := d.subs.ListActiveSubscribers(ctx)
	if err != nil {
		return rep, fmt.Errorf("load subscribers: %w", err)
	}
	rep.Total = len(subs)
	slog.Info("Broadcast started", "broadcast_id", rep.ID, "total", rep.Total, "workers", d.cfg.Workers)

	var success, failure atomic.Int64
	limiter := d.limiter()
	jobs := make(chan int64)

	var wg sync.WaitGroup
	for i := 0; i < min(d.cfg.Workers, max(len(subs), 1)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					failure.Add(1)
					continue
				}
				if err := d.sender.Send(ctx, messenger.Message{ChatID: userID, Text: text, ParseMode: messenger.ModeMarkdown}); err != nil {
					failure.Add(1)
					slog.Debug("Broadcast send failed", "broadcast_id", rep.ID, "user_id", userID, "error", err)
					continue
				}
				success.Add(1)
			}
		}()
	}

	queued := 0
feed:
	for _, s := range subs {
		select {
		case jobs <- s.UserID:
			queued++
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	failure.Add(int64(len(subs) - queued))
	rep.Success = int(success.Load())
	rep.Failure = int(failure.Load())
	rep.Duration = time.Since(start)

	slog.Info("Broadcast finished",
		"broadcast_id", rep.ID, "success", rep.Success, "failure", rep.Failure,
		"total", rep.Total, "duration", rep.Duration)
	return rep, nil
}

// Stats returns subscriber counts.
func (d *Dispatcher) Stats(ctx context.Context) (Stats, error) {
	total, err := d.subs.CountSubscribers(ctx)
	if err != nil {
		return Stats{}, err
	}
	active, err := d.subs.CountActiveSubscribers(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Total: total, Active: active}, nil
}
