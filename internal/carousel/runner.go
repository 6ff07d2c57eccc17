package carousel

import (
	"context"
	"time"
)

// Ticker is the subset of time.Ticker the runner needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory starts a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealTicker wraps time.NewTicker.
func RealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Runner drives an Engine from a single goroutine, owning the autoplay timer.
type Runner struct {
	engine    *Engine
	newTicker TickerFactory
	interval  time.Duration
	events    chan Event
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithTickerFactory replaces the real ticker, mainly for tests.
func WithTickerFactory(factory TickerFactory) RunnerOption {
	return func(r *Runner) {
		if factory != nil {
			r.newTicker = factory
		}
	}
}

// WithInterval overrides AutoplayInterval.
func WithInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewRunner builds a runner for engine.
func NewRunner(engine *Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine:    engine,
		newTicker: RealTicker,
		interval:  AutoplayInterval,
		events:    make(chan Event),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Send hands ev to the running loop.
func (r *Runner) Send(ctx context.Context, ev Event) error {
	select {
	case r.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events and timer ticks until ctx is done. The timer is re-armed each
// time the state's TimerEpoch moves, so a tick always carries the epoch it was armed for.
func (r *Runner) Run(ctx context.Context) error {
	var (
		ticker      Ticker
		tickerEpoch uint64
	)
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
		}
	}
	defer stop()

	for {
		state := r.engine.State()
		switch {
		case !state.TimerArmed():
			stop()
		case ticker == nil || tickerEpoch != state.TimerEpoch:
			stop()
			ticker = r.newTicker(r.interval)
			tickerEpoch = state.TimerEpoch
		}

		var tick <-chan time.Time
		if ticker != nil {
			tick = ticker.C()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.events:
			r.engine.Dispatch(ctx, ev)
		case <-tick:
			r.engine.Dispatch(ctx, TimerTick{Epoch: tickerEpoch})
		}
	}
}
