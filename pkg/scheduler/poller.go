package scheduler

import (
	"context"
	"sync"
	"time"
)

type PollerConfig struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	Step        time.Duration
}

// PollFunc reports whether the polled state changed since the previous call.
type PollFunc func(ctx context.Context) (changed bool, err error)

// AdaptivePoller polls immediately on Start, then backs off by Step while
// nothing changes, up to MaxInterval. A change resets the interval to
// MinInterval, an error jumps straight to MaxInterval.
type AdaptivePoller struct {
	cfg  PollerConfig
	poll PollFunc

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewAdaptivePoller(cfg PollerConfig, poll PollFunc) *AdaptivePoller {
	return &AdaptivePoller{cfg: cfg, poll: poll}
}

func NextInterval(cfg PollerConfig, current time.Duration, changed bool, err error) time.Duration {
	switch {
	case err != nil:
		return cfg.MaxInterval
	case changed:
		return cfg.MinInterval
	default:
		return min(current+cfg.Step, cfg.MaxInterval)
	}
}

// Start is a no-op while the poller is running.
func (p *AdaptivePoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go p.loop(ctx)
}

// Stop cancels the loop without waiting for an in-flight poll, so it may be
// called from inside PollFunc.
func (p *AdaptivePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *AdaptivePoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cancel != nil
}

func (p *AdaptivePoller) loop(ctx context.Context) {
	interval := p.cfg.MinInterval
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		changed, err := p.poll(ctx)
		if ctx.Err() != nil {
			return
		}

		interval = NextInterval(p.cfg, interval, changed, err)
		timer.Reset(interval)
	}
}
