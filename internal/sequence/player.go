package sequence

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ledmatrix/internal/scroll"
)

// ErrNoFrames is returned by Load for programs where no clip has two or more
// characters, since such a program would never show anything.
var ErrNoFrames = errors.New("sequence: program has no scrollable clips")

// NewPlayer constructs a Player sending frames through r.
func NewPlayer(r *scroll.Renderer, h Hooks) *Player {
	return &Player{
		State: Idle,
		r:     r,
		hooks: h,
	}
}

// Load replaces the current program. Every glyph is resolved here, so a
// missing character fails the load rather than the playback. State goes to
// Idle.
func (p *Player) Load(prog Program) error {
	if len(prog.Clips) == 0 {
		return errors.New("sequence: program has no clips")
	}
	scrollers := make([]*scroll.Scroller, len(prog.Clips))
	frames := 0
	for i, c := range prog.Clips {
		s, err := scroll.NewScroller(p.r.Font, c.Message)
		if err != nil {
			return fmt.Errorf("sequence: clip %d %q: %w", i, c.Name, err)
		}
		scrollers[i] = s
		frames += s.Len()
	}
	if frames == 0 {
		return ErrNoFrames
	}
	p.prog = prog
	p.scrollers = scrollers
	p.idx = 0
	p.cur = nil
	p.State = Idle
	log.Debug().Int("clips", len(prog.Clips)).Int("frames", frames).Bool("loop", prog.Loop).Msg("sequence: loaded")
	return nil
}

// SetMessage loads a single clip program showing msg.
func (p *Player) SetMessage(msg string, loop bool) error {
	running := p.State == Running
	if err := p.Load(Program{Version: "scroll.v1", Loop: loop, Clips: []Clip{{Name: "message", Message: msg}}}); err != nil {
		return err
	}
	if running {
		p.Start()
	}
	return nil
}

// SetFrameDelay overrides the frame delay of every clip. A negative d removes
// the override.
func (p *Player) SetFrameDelay(d time.Duration) {
	if d < 0 {
		p.override = nil
		return
	}
	p.override = &d
}

// Program returns the loaded program.
func (p *Player) Program() Program {
	return p.prog
}

// Clip returns the index of the current clip.
func (p *Player) Clip() int {
	return p.idx
}

// Start moves to Running. Playback begins at the current clip.
func (p *Player) Start() {
	if p.State == Running || len(p.scrollers) == 0 {
		return
	}
	p.State = Running
}

// Pause pauses playback.
func (p *Player) Pause() {
	if p.State == Running {
		p.State = Paused
	}
}

// Resume resumes playback.
func (p *Player) Resume() {
	if p.State == Paused {
		p.State = Running
	}
}

// Stop stops and rewinds to the first clip.
func (p *Player) Stop() {
	p.State = Idle
	p.idx = 0
	p.cur = nil
}

// Step sends at most one frame and returns how long to wait before the next
// Step. It does nothing unless the player is Running. Clips without frames are
// skipped. After the last frame of a program that does not loop the player
// goes Idle and the returned wait is 0.
func (p *Player) Step() (time.Duration, error) {
	if p.State != Running {
		return 0, nil
	}
	for p.cur == nil || p.cur.Remaining() == 0 {
		if p.cur != nil && !p.advance() {
			p.State = Idle
			return 0, nil
		}
		if err := p.enter(); err != nil {
			return 0, err
		}
	}

	if _, err := p.r.Step(p.cur); err != nil {
		return 0, err
	}
	if p.cur.Remaining() == 0 && p.next() == -1 {
		log.Debug().Msg("sequence: program finished")
		p.State = Idle
		p.cur = nil
		p.idx = 0
		return 0, nil
	}
	return p.delay(), nil
}

func (p *Player) enter() error {
	p.cur = p.scrollers[p.idx]
	p.cur.Reset()
	if p.cur.Len() == 0 {
		return nil
	}
	c := p.prog.Clips[p.idx]
	log.Debug().Int("clip", p.idx).Str("name", c.Name).Int("frames", p.cur.Len()).Msg("sequence: clip start")
	if c.Brightness != nil && p.hooks.SetBrightness != nil {
		if err := p.hooks.SetBrightness(*c.Brightness); err != nil {
			return err
		}
	}
	if p.hooks.ClipStarted != nil {
		p.hooks.ClipStarted(p.idx, c)
	}
	return nil
}

func (p *Player) advance() bool {
	n := p.next()
	if n == -1 {
		return false
	}
	p.idx = n
	return true
}

func (p *Player) next() int {
	ni := p.idx + 1
	if ni >= len(p.prog.Clips) {
		if p.prog.Loop {
			return 0
		}
		return -1
	}
	return ni
}

func (p *Player) delay() time.Duration {
	if p.override != nil {
		return *p.override
	}
	if ms := p.prog.Clips[p.idx].FrameDelayMS; ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return p.DefaultDelay
}
