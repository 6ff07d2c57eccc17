package carousel

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
)

// PlaybackHandle controls one video element.
type PlaybackHandle interface {
	Play(ctx context.Context) error
	Pause()
	SetLoop(loop bool)
	SetPreload(preload Preload)
	Release()
}

// HandleFactory attaches a handle to the video slide at index.
type HandleFactory func(index int, slide domain.Slide) PlaybackHandle

type boundHandle struct {
	handle  PlaybackHandle
	locator string
	playing bool
}

// Engine applies events to a State and keeps playback handles in line with Plan.
type Engine struct {
	mu      sync.Mutex
	state   State
	handles map[int]*boundHandle
	attach  HandleFactory
	logger  *zap.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger used for swallowed playback errors.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds an engine starting from state. attach may be nil when no playback
// surface exists, in which case only the state is tracked.
func NewEngine(state State, attach HandleFactory, opts ...EngineOption) *Engine {
	e := &Engine{
		state:   state,
		handles: make(map[int]*boundHandle),
		attach:  attach,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Dispatch reduces ev into the state and reconciles playback.
func (e *Engine) Dispatch(ctx context.Context, ev Event) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Reduce(e.state, ev)
	e.reconcile(ctx)
	return e.state
}

// Navigate applies a manual gesture. It reports whether the carousel claimed the input;
// callers must stop propagation of claimed input. Controls only exist with more than
// one slide, so single-slide carousels never claim.
func (e *Engine) Navigate(ctx context.Context, gesture string, kind NavKind, index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Count() <= 1 {
		return false
	}
	e.state = Reduce(e.state, ManualNav{Gesture: gesture, Kind: kind, Index: index})
	e.reconcile(ctx)
	return true
}

// Close pauses and releases every handle.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for idx, bound := range e.handles {
		bound.handle.Pause()
		bound.handle.Release()
		delete(e.handles, idx)
	}
}

func (e *Engine) reconcile(ctx context.Context) {
	plan := Plan(e.state)

	for idx, bound := range e.handles {
		if _, ok := plan[idx]; ok && e.state.Slides[idx].Locator == bound.locator {
			continue
		}
		bound.handle.Pause()
		bound.handle.Release()
		delete(e.handles, idx)
	}

	if e.attach == nil {
		return
	}

	for idx, dir := range plan {
		bound, ok := e.handles[idx]
		if !ok {
			slide := e.state.Slides[idx]
			handle := e.attach(idx, slide)
			if handle == nil {
				continue
			}
			bound = &boundHandle{handle: handle, locator: slide.Locator}
			e.handles[idx] = bound
		}
		bound.handle.SetLoop(dir.Loop)
		bound.handle.SetPreload(dir.Preload)

		switch {
		case dir.Play && !bound.playing:
			bound.playing = true
			if err := bound.handle.Play(ctx); err != nil {
				e.logger.Debug("carousel playback rejected", zap.Int("index", idx), zap.Error(err))
			}
		case !dir.Play && bound.playing:
			bound.playing = false
			bound.handle.Pause()
		}
	}
}
