package sequence

import (
	"time"

	"github.com/coreman2200/ledmatrix/internal/scroll"
)

// Clip is one message of a playlist, scrolled once from its first to its last
// character.
type Clip struct {
	Name    string `yaml:"name" json:"name"`
	Message string `yaml:"message" json:"message"`
	// FrameDelayMS is the wait between frames. Zero uses the player default.
	FrameDelayMS int `yaml:"frame_delay_ms,omitempty" json:"frameDelayMS,omitempty"`
	// Brightness, when set, is applied as the clip starts.
	Brightness *int `yaml:"brightness,omitempty" json:"brightness,omitempty"`
}

// Program is a full playlist.
type Program struct {
	Version string `yaml:"version" json:"version"` // e.g., "scroll.v1"
	Loop    bool   `yaml:"loop,omitempty" json:"loop,omitempty"`
	Clips   []Clip `yaml:"clips" json:"clips"`
}

// PlayerState enumerates player states.
type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
	Paused  PlayerState = "paused"
)

// Hooks are callbacks into the display owner.
type Hooks struct {
	// SetBrightness applies a clip's brightness.
	SetBrightness func(level int) error
	// ClipStarted reports the clip about to send its first frame.
	ClipStarted func(index int, c Clip)
}

// Player walks a Program one frame per Step.
type Player struct {
	State PlayerState

	prog      Program
	scrollers []*scroll.Scroller
	idx       int
	cur       *scroll.Scroller

	// DefaultDelay applies to clips without FrameDelayMS.
	DefaultDelay time.Duration
	override     *time.Duration

	r     *scroll.Renderer
	hooks Hooks
}
