package carousel

import "github.com/tsuyoshi-3110/dslab571/internal/domain"

// Preload hints how eagerly a video element fetches its source.
type Preload string

const (
	PreloadAuto     Preload = "auto"
	PreloadMetadata Preload = "metadata"
)

// Directive is the desired playback state of one video slide.
type Directive struct {
	Play    bool
	Loop    bool
	Preload Preload
}

// Plan returns a directive for every video slide, keyed by slide index.
func Plan(s State) map[int]Directive {
	plan := make(map[int]Directive)
	active := wrap(s.Active, s.Count())
	preload := PreloadMetadata
	if s.Visible {
		preload = PreloadAuto
	}
	for idx, slide := range s.Slides {
		if !slide.IsVideo() {
			continue
		}
		plan[idx] = Directive{
			Play:    s.Visible && idx == active,
			Loop:    len(s.Slides) == 1,
			Preload: preload,
		}
	}
	return plan
}

// Config is the carousel configuration handed to storefront clients.
type Config struct {
	Slides             []SlideConfig `json:"slides"`
	AutoplayIntervalMs int64         `json:"autoplayIntervalMs"`
	PrerollMarginPx    int           `json:"prerollMarginPx"`
	LoopSingleVideo    bool          `json:"loopSingleVideo"`
	Autoplay           bool          `json:"autoplay"`
}

// SlideConfig is one slide in Config.
type SlideConfig struct {
	Kind    string `json:"kind"`
	Locator string `json:"src"`
}

// DisplayConfig builds the client payload for slides.
func DisplayConfig(slides []domain.Slide, fallback domain.Slide, autoplay bool) Config {
	state := NewState(slides, fallback, autoplay)
	out := make([]SlideConfig, 0, len(state.Slides))
	for _, slide := range state.Slides {
		out = append(out, SlideConfig{Kind: string(slide.Kind), Locator: slide.Locator})
	}
	return Config{
		Slides:             out,
		AutoplayIntervalMs: AutoplayInterval.Milliseconds(),
		PrerollMarginPx:    PrerollMarginPx,
		LoopSingleVideo:    state.LoopSingleVideo(),
		Autoplay:           autoplay,
	}
}
