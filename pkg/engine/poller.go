package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TimerPoller periodically fires due durable timers. It polls the
// timer store so wake-ups survive process restarts regardless of how
// long they were scheduled for.
type TimerPoller struct {
	engine   *Engine
	logger   *slog.Logger
	interval time.Duration
	ticker   *time.Ticker
	done     chan bool
	started  bool
	mu       sync.Mutex
}

// NewTimerPoller creates a poller with the given resolution. A zero
// interval defaults to one second.
func NewTimerPoller(engine *Engine, logger *slog.Logger, interval time.Duration) *TimerPoller {
	if interval <= 0 {
		interval = time.Second
	}

	return &TimerPoller{
		engine:   engine,
		logger:   logger.With("module", "timer_poller"),
		interval: interval,
	}
}

// Start begins polling until Stop or context cancellation.
func (p *TimerPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan bool)
	p.started = true

	go p.poll(ctx)

	p.logger.InfoContext(ctx, "Timer poller started", "interval", p.interval)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *TimerPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}

	p.ticker.Stop()

	select {
	case p.done <- true:
	default:
	}

	p.started = false
	p.logger.InfoContext(ctx, "Timer poller stopped")

	return nil
}

func (p *TimerPoller) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-p.ticker.C:
			err := p.engine.ResumeDue(ctx, time.Now().UTC())
			if err != nil {
				p.logger.ErrorContext(ctx, "Failed to resume due timers", "error", err)
			}
		}
	}
}
