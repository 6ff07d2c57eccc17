// Package carousel models the storefront media carousel as a pure state machine.
//
// Reduce applies one Event to a State and never touches the outside world. Plan derives
// which video slides should be playing, and Engine reconciles that plan against real
// playback handles. Runner feeds timer ticks into an Engine.
package carousel

import (
	"strings"
	"time"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
)

const (
	// AutoplayInterval is the delay between automatic advances on image slides.
	AutoplayInterval = 3500 * time.Millisecond
	// PrerollMarginPx is how far outside the viewport the carousel counts as visible.
	PrerollMarginPx = 600
)

// State is the complete carousel state. Treat it as a value: Reduce returns a new one.
type State struct {
	Slides   []domain.Slide
	Active   int
	Visible  bool
	Autoplay bool
	// TimerEpoch changes whenever the autoplay timer must be re-armed or disarmed.
	// Ticks carrying an older epoch are ignored.
	TimerEpoch  uint64
	LastGesture string
	Fallback    domain.Slide
}

// NewState builds the initial state for slides. An empty slide list shows fallback.
func NewState(slides []domain.Slide, fallback domain.Slide, autoplay bool) State {
	return State{
		Slides:   normalizeSlides(slides, fallback),
		Autoplay: autoplay,
		Fallback: fallback,
	}
}

// Count returns the number of slides. It is at least one.
func (s State) Count() int {
	if len(s.Slides) == 0 {
		return 1
	}
	return len(s.Slides)
}

// ActiveSlide returns the slide currently shown.
func (s State) ActiveSlide() domain.Slide {
	if len(s.Slides) == 0 {
		return s.Fallback
	}
	return s.Slides[wrap(s.Active, len(s.Slides))]
}

// TimerArmed reports whether the autoplay timer should be running.
func (s State) TimerArmed() bool {
	return s.Autoplay && s.Count() > 1 && !s.ActiveSlide().IsVideo()
}

// LoopSingleVideo reports whether the only slide is a video that should loop.
func (s State) LoopSingleVideo() bool {
	return s.Count() == 1 && s.ActiveSlide().IsVideo()
}

// Event is one input to Reduce.
type Event interface {
	carouselEvent()
}

// TimerTick is delivered by the autoplay timer armed for Epoch.
type TimerTick struct{ Epoch uint64 }

// VideoEnded reports that the video at Index finished playing.
type VideoEnded struct{ Index int }

// VisibilityChanged reports the carousel entering or leaving the pre-roll viewport.
type VisibilityChanged struct{ Visible bool }

// NavKind selects the manual navigation action.
type NavKind int

const (
	NavNext NavKind = iota
	NavPrev
	NavJump
)

// ManualNav is a user gesture on the arrows or dots. Gesture identifies one physical
// input so that the same press delivered twice (pointer and click) moves only once.
type ManualNav struct {
	Gesture string
	Kind    NavKind
	Index   int
}

// SlidesChanged replaces the slide list.
type SlidesChanged struct{ Slides []domain.Slide }

// AutoplayChanged toggles automatic advancing.
type AutoplayChanged struct{ Enabled bool }

func (TimerTick) carouselEvent()         {}
func (VideoEnded) carouselEvent()        {}
func (VisibilityChanged) carouselEvent() {}
func (ManualNav) carouselEvent()         {}
func (SlidesChanged) carouselEvent()     {}
func (AutoplayChanged) carouselEvent()   {}

// Reduce applies ev to s.
func Reduce(s State, ev Event) State {
	before := armingKeyOf(s)
	next := s

	switch e := ev.(type) {
	case TimerTick:
		if e.Epoch != s.TimerEpoch || !s.TimerArmed() {
			return s
		}
		next.Active = wrap(s.Active+1, s.Count())
	case VideoEnded:
		if e.Index != wrap(s.Active, s.Count()) || !s.Autoplay || s.Count() <= 1 {
			return s
		}
		next.Active = wrap(s.Active+1, s.Count())
	case VisibilityChanged:
		next.Visible = e.Visible
	case ManualNav:
		if s.Count() <= 1 {
			return s
		}
		if e.Gesture != "" && e.Gesture == s.LastGesture {
			return s
		}
		next.LastGesture = e.Gesture
		switch e.Kind {
		case NavPrev:
			next.Active = wrap(s.Active-1, s.Count())
		case NavNext:
			next.Active = wrap(s.Active+1, s.Count())
		case NavJump:
			next.Active = wrap(e.Index, s.Count())
		}
	case SlidesChanged:
		next.Slides = normalizeSlides(e.Slides, s.Fallback)
		next.Active = wrap(s.Active, next.Count())
	case AutoplayChanged:
		next.Autoplay = e.Enabled
	default:
		return s
	}

	if armingKeyOf(next) != before {
		next.TimerEpoch = s.TimerEpoch + 1
	}
	return next
}

// armingKey holds every input the autoplay timer depends on.
type armingKey struct {
	autoplay    bool
	count       int
	activeVideo bool
}

func armingKeyOf(s State) armingKey {
	return armingKey{
		autoplay:    s.Autoplay,
		count:       s.Count(),
		activeVideo: s.ActiveSlide().IsVideo(),
	}
}

func normalizeSlides(slides []domain.Slide, fallback domain.Slide) []domain.Slide {
	out := make([]domain.Slide, 0, len(slides))
	for _, slide := range slides {
		if strings.TrimSpace(slide.Locator) == "" {
			continue
		}
		out = append(out, slide)
	}
	if len(out) == 0 {
		return []domain.Slide{fallback}
	}
	return out
}

func wrap(index, count int) int {
	if count <= 0 {
		return 0
	}
	return ((index % count) + count) % count
}
