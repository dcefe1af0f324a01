package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc runs one poll cycle. It should honor ctx for shutdown.
type TickFunc func(ctx context.Context)

// Config holds scheduler configuration.
type Config struct {
	Interval time.Duration // Time between poll cycles (default: 60s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 60 * time.Second}
}

// Stats is a snapshot of scheduler activity.
type Stats struct {
	Ticks    int64
	Skipped  int64
	InFlight bool
}

// Poller fires a tick function on a fixed interval, skipping fires that
// would overlap a running cycle.
type Poller struct {
	cfg    Config
	tick   TickFunc
	logger *slog.Logger

	inFlight atomic.Bool
	ticks    atomic.Int64
	skipped  atomic.Int64

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Poller driving the given tick function.
func New(cfg Config, tick TickFunc, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{
		cfg:    cfg,
		tick:   tick,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start begins the timer loop with an immediate first tick.
func (p *Poller) Start(ctx context.Context) error {
	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("poller started", "interval", p.cfg.Interval)
	return nil
}

// Stop halts the timer and waits for an in-flight cycle to finish, bounded
// by ctx. Safe to call more than once.
func (p *Poller) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.done) })

	waited := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		p.logger.Info("poller stopped",
			"ticks", p.ticks.Load(), "skipped", p.skipped.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of scheduler activity.
func (p *Poller) Stats() Stats {
	return Stats{
		Ticks:    p.ticks.Load(),
		Skipped:  p.skipped.Load(),
		InFlight: p.inFlight.Load(),
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.fire(ctx)

	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fire(ctx)
		}
	}
}

// fire runs one cycle unless the previous one is still in flight.
func (p *Poller) fire(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		n := p.skipped.Add(1)
		p.logger.Warn("poll cycle still running, tick skipped", "skipped_total", n)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)

		start := time.Now()
		p.tick(ctx)
		p.ticks.Add(1)
		p.logger.Debug("poll cycle complete", "duration", time.Since(start))
	}()
}
