package session

import (
	"context"
	"sync"
	"time"

	"menuvista-session/internal/model"
)

// DefaultPollInterval is the fixed status polling period.
const DefaultPollInterval = 5 * time.Second

// ShouldPoll reports whether status polling is needed: a token exists
// and at least one order is active.
func ShouldPoll(token string, orders []model.OrderSummary) bool {
	return token != "" && model.ActiveCount(orders) > 0
}

// Poller runs tick on a fixed schedule in its own goroutine until
// stopped. A slow or failing tick does not shift the schedule.
type Poller struct {
	interval time.Duration
	tick     func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped poller.
func NewPoller(interval time.Duration, tick func(ctx context.Context)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, tick: tick}
}

// Start launches the loop under parent. It is a no-op when running.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop cancels the loop without waiting for a tick in progress, so it
// is safe to call from within tick.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
}

// Running reports whether the loop has been started and not stopped.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Done returns a channel closed when the most recently started loop
// exits, or nil if the poller never started.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			p.tick(ctx)
		}
	}
}
