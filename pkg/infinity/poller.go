package infinity

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StatusSource supplies system status snapshots. *Client implements it;
// tests substitute fakes.
type StatusSource interface {
	FetchStatus(ctx context.Context, serial string) (*System, error)
}

var _ StatusSource = (*Client)(nil)

// Poller fetches one system's status at a fixed cadence and hands every
// outcome to a sink. A failed fetch is delivered as an error event and the
// loop keeps going; only context cancellation ends it.
type Poller struct {
	Source   StatusSource
	Serial   string
	Interval time.Duration
	Logger   *zap.SugaredLogger
}

const defaultPollInterval = 60 * time.Second

// Run fetches immediately, then once per interval, until ctx is cancelled.
// It returns ctx.Err() on cancellation. Cancellation is honored at cycle
// boundaries; an in-flight fetch sees the same ctx and aborts with it.
func (p *Poller) Run(ctx context.Context, sink func(*System, error)) error {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sys, err := p.Source.FetchStatus(ctx, p.Serial)
		if err != nil && p.Logger != nil {
			p.Logger.Warnw("status poll failed", "serial", p.Serial, "error", err)
		}
		sink(sys, err)

		// Check cancellation before the interval wait so a sink-triggered
		// stop never starts another cycle.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
