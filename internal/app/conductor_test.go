package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/ledmatrix/internal/font"
	"github.com/coreman2200/ledmatrix/internal/scroll"
	"github.com/coreman2200/ledmatrix/internal/sequence"
	"github.com/coreman2200/ledmatrix/internal/tm1640"
	"github.com/coreman2200/ledmatrix/internal/tm1640sim"
	"github.com/coreman2200/ledmatrix/internal/ws"
)

// flakyPin fails every write while broken is set.
type flakyPin struct {
	*tm1640sim.Pin
	broken bool
}

func (p *flakyPin) Out(l gpio.Level) error {
	if p.broken {
		return errors.New("line stuck")
	}
	return p.Pin.Out(l)
}

func newConductor(t *testing.T) (*Conductor, *tm1640sim.Controller, *ws.State) {
	sim := tm1640sim.New()
	dev, err := tm1640.New(sim.Clock(), sim.Data(), &tm1640.Opts{Intensity: 0, Active: true})
	require.NoError(t, err)
	state := ws.NewState("sim", dev.Grids())
	c := NewConductor(dev, font.Basic(), state)
	sim.ResetLog()
	return c, sim, state
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }
func boolp(v bool) *bool    { return &v }

func TestStepPlaysProgram(t *testing.T) {
	c, sim, state := newConductor(t)
	require.NoError(t, c.Seq.Load(sequence.Program{Clips: []sequence.Clip{{Name: "hi", Message: "Hi", FrameDelayMS: 15, Brightness: intp(4)}}}))
	c.Seq.Start()

	var waits []time.Duration
	for i := 0; i < 8; i++ {
		waits = append(waits, c.Step())
	}

	assert.Equal(t, 8, sim.Writes)
	assert.Equal(t, 4, sim.Brightness)
	assert.Equal(t, 15*time.Millisecond, waits[0])
	assert.Equal(t, c.IdleWait, waits[7], "nothing to wait for after the last frame")
	assert.Equal(t, sequence.Idle, c.Seq.State)

	last := scroll.Merge(glyph(t, 'H'), glyph(t, 'i'), 7)
	assert.Equal(t, last[:], sim.Visible(8))
	assert.Equal(t, "idle", state.Status().State)
	assert.Equal(t, 4, state.Status().Brightness)
}

func TestApplyControls(t *testing.T) {
	c, sim, state := newConductor(t)

	c.Apply(ws.Control{Brightness: intp(12), Active: boolp(false)})
	assert.Equal(t, 7, sim.Brightness)
	assert.False(t, sim.On)
	assert.False(t, state.Status().Active)

	c.Apply(ws.Control{Active: boolp(true), Message: strp("OK"), FrameDelayMS: intp(1)})
	assert.Equal(t, sequence.Running, c.Seq.State)
	assert.Equal(t, "OK", state.Status().Message)
	assert.Equal(t, time.Millisecond, c.Step())

	c.Apply(ws.Control{Cmd: ws.CmdPause})
	assert.Equal(t, sequence.Paused, c.Seq.State)
	assert.Equal(t, c.IdleWait, c.Step())
	assert.Equal(t, 1, sim.Writes)

	c.Apply(ws.Control{Cmd: ws.CmdStop})
	assert.Equal(t, sequence.Idle, c.Seq.State)
	assert.Equal(t, make([]byte, 8), sim.Frame(8))
}

func TestApplyBadMessageKeepsProgram(t *testing.T) {
	c, _, _ := newConductor(t)
	require.NoError(t, c.Seq.Load(sequence.Program{Clips: []sequence.Clip{{Message: "AB"}}}))

	c.Apply(ws.Control{Message: strp("A☃")})

	assert.Equal(t, "AB", c.Seq.Program().Clips[0].Message)
}

func TestTestPattern(t *testing.T) {
	c, sim, _ := newConductor(t)
	require.NoError(t, c.Seq.Load(sequence.Program{Loop: true, Clips: []sequence.Clip{{Message: "AB"}}}))
	c.Seq.Start()

	c.Apply(ws.Control{Cmd: ws.CmdTest, Test: "all_on"})
	assert.Equal(t, sequence.Paused, c.Seq.State)

	assert.Equal(t, c.TestStep, c.Step())
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, sim.Visible(8))

	assert.Equal(t, c.IdleWait, c.Step())
	assert.Equal(t, sequence.Running, c.Seq.State)

	c.Apply(ws.Control{Cmd: ws.CmdTest, Test: "plane_z"})
	assert.Nil(t, c.test)
}

func TestHardwareFaultPausesUntilReinit(t *testing.T) {
	sim := tm1640sim.New()
	clk := &flakyPin{Pin: sim.Clock()}
	dev, err := tm1640.New(clk, sim.Data(), nil)
	require.NoError(t, err)
	c := NewConductor(dev, font.Basic(), nil)
	require.NoError(t, c.Seq.Load(sequence.Program{Loop: true, Clips: []sequence.Clip{{Message: "AB"}}}))
	c.Seq.Start()

	clk.broken = true
	assert.Equal(t, c.IdleWait, c.Step())
	assert.Equal(t, sequence.Paused, c.Seq.State)

	clk.broken = false
	c.Apply(ws.Control{Cmd: ws.CmdResume})
	c.Step()
	assert.Equal(t, sequence.Paused, c.Seq.State, "a corrupted display keeps playback paused")

	c.Apply(ws.Control{Cmd: ws.CmdReinit})
	assert.Equal(t, sequence.Running, c.Seq.State)
	c.Step()
	assert.Equal(t, sequence.Running, c.Seq.State)
}

func TestReinitResendsFailedFrame(t *testing.T) {
	sim := tm1640sim.New()
	clk := &flakyPin{Pin: sim.Clock()}
	dev, err := tm1640.New(clk, sim.Data(), nil)
	require.NoError(t, err)
	c := NewConductor(dev, font.Basic(), nil)
	require.NoError(t, c.Seq.Load(sequence.Program{Clips: []sequence.Clip{{Message: "AB"}}}))
	c.Seq.Start()

	var shown [][]byte
	sim.OnWrite = func(s *tm1640sim.Controller) {
		if f := s.Frame(8); !bytes.Equal(f, make([]byte, 8)) {
			shown = append(shown, f)
		}
	}

	c.Step()
	c.Step()
	clk.broken = true
	c.Step()
	require.Equal(t, sequence.Paused, c.Seq.State)
	require.Len(t, shown, 2)

	clk.broken = false
	c.Apply(ws.Control{Cmd: ws.CmdReinit})
	for i := 0; i < 10 && c.Seq.State == sequence.Running; i++ {
		c.Step()
	}

	assert.Equal(t, sequence.Idle, c.Seq.State)
	require.Len(t, shown, 8)
	a, b := glyph(t, 'A'), glyph(t, 'B')
	for off := 0; off < 8; off++ {
		want := scroll.Merge(a, b, uint(off))
		assert.Equal(t, want[:], shown[off], "offset %d", off)
	}
}

func TestTestPatternKeepsUserPause(t *testing.T) {
	c, _, _ := newConductor(t)
	require.NoError(t, c.Seq.Load(sequence.Program{Loop: true, Clips: []sequence.Clip{{Message: "AB"}}}))
	c.Seq.Start()

	c.Apply(ws.Control{Cmd: ws.CmdPause})
	c.Apply(ws.Control{Cmd: ws.CmdTest, Test: "all_on"})
	for i := 0; i < 3; i++ {
		c.Step()
	}

	assert.Nil(t, c.test)
	assert.Equal(t, sequence.Paused, c.Seq.State)
}

func TestRunClearsOnShutdown(t *testing.T) {
	c, sim, _ := newConductor(t)
	require.NoError(t, c.Seq.Load(sequence.Program{Clips: []sequence.Clip{{Message: "AB", FrameDelayMS: 1}}}))
	c.Seq.Start()
	c.IdleWait = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Run(ctx))

	assert.GreaterOrEqual(t, sim.Writes, 9)
	assert.Equal(t, make([]byte, 8), sim.Frame(8))
}

func glyph(t *testing.T, r rune) font.Glyph {
	g, err := font.Basic().Glyph(r)
	require.NoError(t, err)
	return g
}
