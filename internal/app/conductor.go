package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/ledmatrix/internal/diagnostics"
	"github.com/coreman2200/ledmatrix/internal/scroll"
	"github.com/coreman2200/ledmatrix/internal/sequence"
	"github.com/coreman2200/ledmatrix/internal/testpattern"
	"github.com/coreman2200/ledmatrix/internal/tm1640"
	"github.com/coreman2200/ledmatrix/internal/ws"
)

const (
	// DefaultIdleWait is how often an idle conductor looks at the player.
	DefaultIdleWait = 50 * time.Millisecond
	// DefaultTestStep is how long each test pattern frame stays up.
	DefaultTestStep = 300 * time.Millisecond
)

// Conductor owns the display and runs the player, test patterns and control
// requests on a single goroutine, so the display only ever has one writer.
type Conductor struct {
	Dev   *tm1640.Dev
	Seq   *sequence.Player
	State *ws.State

	// LoopMessages makes messages set over the control socket repeat.
	LoopMessages bool
	IdleWait     time.Duration
	TestStep     time.Duration

	test *testpattern.Runner
	// resume is set when a test pattern interrupted running playback.
	resume bool
}

// NewConductor wires a player to dev. state may be nil.
func NewConductor(dev *tm1640.Dev, f scroll.Font, state *ws.State) *Conductor {
	c := &Conductor{Dev: dev, State: state, IdleWait: DefaultIdleWait, TestStep: DefaultTestStep}

	hooks := sequence.Hooks{
		SetBrightness: dev.SetBrightness,
		ClipStarted: func(i int, clip sequence.Clip) {
			log.Info().Int("clip", i).Str("name", clip.Name).Str("message", clip.Message).Msg("scrolling")
			c.publishStatus()
		},
	}
	c.Seq = sequence.NewPlayer(&scroll.Renderer{Sink: frameSink{c}, Font: f}, hooks)
	return c
}

// frameSink sends to the display and mirrors successful frames to preview
// clients.
type frameSink struct{ c *Conductor }

func (s frameSink) SendFrame(frame []byte) error {
	if err := s.c.Dev.SendFrame(frame); err != nil {
		return err
	}
	if s.c.State != nil {
		s.c.State.PublishFrame(frame)
	}
	return nil
}

// Run steps the display until ctx is done, applying control requests between
// frames. On return the display is cleared.
func (c *Conductor) Run(ctx context.Context) error {
	var controls <-chan ws.Control
	if c.State != nil {
		controls = c.State.Controls()
	}
	c.publishStatus()

	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return c.shutdown()
		case ctl := <-controls:
			c.Apply(ctl)
		case <-t.C:
			t.Reset(c.Step())
		}
	}
}

// Step shows the next test pattern or player frame and returns the wait
// before the next one.
func (c *Conductor) Step() time.Duration {
	if c.test != nil {
		frame := make([]byte, c.Dev.Grids())
		if !c.test.Step(frame) {
			c.report(diag.Diagnostic{Severity: diag.Info, Code: "TEST.DONE", Summary: "Test complete", Detail: string(c.test.Kind())})
			c.test = nil
			if c.resume {
				c.Seq.Resume()
			}
			return c.IdleWait
		}
		if err := (frameSink{c}).SendFrame(frame); err != nil {
			c.fail(err)
			c.test = nil
			return c.IdleWait
		}
		return c.TestStep
	}

	before := c.Seq.State
	wait, err := c.Seq.Step()
	if err != nil {
		c.fail(err)
		return c.IdleWait
	}
	if before == sequence.Running && c.Seq.State == sequence.Idle {
		log.Info().Msg("program finished")
		c.publishStatus()
	}
	if c.Seq.State != sequence.Running {
		return c.IdleWait
	}
	return wait
}

// Apply carries out one control request.
func (c *Conductor) Apply(ctl ws.Control) {
	defer c.publishStatus()

	if ctl.Brightness != nil {
		if err := c.Dev.SetBrightness(*ctl.Brightness); err != nil {
			c.fail(err)
			return
		}
	}
	if ctl.Active != nil {
		if err := c.Dev.SetActive(*ctl.Active); err != nil {
			c.fail(err)
			return
		}
	}
	if ctl.FrameDelayMS != nil {
		c.Seq.SetFrameDelay(time.Duration(*ctl.FrameDelayMS) * time.Millisecond)
	}
	if ctl.Message != nil {
		if err := c.Seq.SetMessage(*ctl.Message, c.LoopMessages); err != nil {
			c.fail(err)
			return
		}
		c.Seq.Start()
	}

	switch ctl.Cmd {
	case ws.CmdStart:
		c.Seq.Start()
	case ws.CmdPause:
		c.Seq.Pause()
	case ws.CmdResume:
		c.Seq.Resume()
	case ws.CmdStop:
		c.Seq.Stop()
		c.clear()
	case ws.CmdClear:
		c.clear()
	case ws.CmdReinit:
		if err := c.Dev.Reinit(); err != nil {
			c.fail(err)
			return
		}
		log.Info().Str("dev", c.Dev.String()).Msg("display reinitialized")
		c.Seq.Resume()
	case ws.CmdTest:
		k, err := testpattern.Parse(ctl.Test)
		if err != nil {
			c.report(diag.Diagnostic{
				Severity: diag.Warn, Code: "TEST.UNKNOWN", Summary: "Unknown test name",
				Evidence: map[string]any{"name": ctl.Test},
			})
			return
		}
		c.report(diag.Diagnostic{Severity: diag.Info, Code: "TEST.RUNNING", Summary: "Running test", Detail: ctl.Test})
		if c.test == nil {
			c.resume = c.Seq.State == sequence.Running
		}
		c.Seq.Pause()
		c.test = testpattern.NewRunner(k)
	}
}

func (c *Conductor) clear() {
	if err := c.Dev.Clear(); err != nil {
		c.fail(err)
		return
	}
	if c.State != nil {
		c.State.PublishFrame(make([]byte, c.Dev.Grids()))
	}
}

// fail reports err and pauses playback. Hardware faults stay paused until a
// reinit request.
func (c *Conductor) fail(err error) {
	d := diag.FromError(err)
	log.Error().Err(err).Str("code", d.Code).Msg("display error")
	c.report(d)
	var hw *tm1640.HardwareIOError
	if errors.As(err, &hw) || errors.Is(err, tm1640.ErrCorrupted) {
		c.Seq.Pause()
	}
}

func (c *Conductor) report(d diag.Diagnostic) {
	if c.State != nil {
		c.State.PushDiag(d)
	}
}

func (c *Conductor) publishStatus() {
	if c.State == nil {
		return
	}
	st := ws.Status{
		Brightness: c.Dev.Brightness(),
		Active:     c.Dev.Active(),
		State:      string(c.Seq.State),
	}
	if clips := c.Seq.Program().Clips; len(clips) > 0 {
		st.Message = clips[c.Seq.Clip()].Message
	}
	c.State.SetStatus(st)
}

func (c *Conductor) shutdown() error {
	log.Info().Msg("clearing display")
	return c.Dev.Clear()
}
