// Package scroll slides text across an 8x8 matrix one column at a time.
//
// Consecutive characters of a message form pairs. For every pair, eight frames
// blend the first glyph sliding out toward column 0 with the second sliding in
// from column 7. A message of L characters yields (L-1)*8 frames; fewer than
// two characters yield none.
package scroll

import (
	"context"
	"fmt"
	"time"

	"github.com/coreman2200/ledmatrix/internal/font"
)

// FramesPerPair is the number of shift positions between two glyphs.
const FramesPerPair = 8

// Frame is one full display snapshot. Byte k is display line k.
type Frame [8]byte

// Font resolves characters to glyphs.
type Font interface {
	Glyph(r rune) (font.Glyph, error)
}

// Sink receives frames. *tm1640.Dev satisfies it.
type Sink interface {
	SendFrame(frame []byte) error
}

// Sleeper blocks between frames.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleepFunc adapts a function such as time.Sleep to Sleeper.
type SleepFunc func(time.Duration)

func (f SleepFunc) Sleep(d time.Duration) { f(d) }

// ShiftRow merges two glyph rows at the given column offset: the columns of a
// move offset places toward column 0 and b fills the vacated high columns.
// Offset 0 yields a and offset 8 yields b.
func ShiftRow(a, b byte, offset uint) byte {
	return a>>offset | b<<(8-offset)
}

// Merge applies ShiftRow to every row of c1 and c2.
func Merge(c1, c2 font.Glyph, offset uint) Frame {
	var f Frame
	for r := range f {
		f[r] = ShiftRow(c1[r], c2[r], offset)
	}
	return f
}

// Scroller produces the frames of one message lazily. It is a two-level
// counter over (pair, offset) and never repeats or skips a frame.
type Scroller struct {
	glyphs []font.Glyph
	pair   int
	offset uint
}

// NewScroller resolves every glyph of message up front, so a missing glyph is
// reported before any frame is produced.
func NewScroller(f Font, message string) (*Scroller, error) {
	s := &Scroller{}
	for i, r := range []rune(message) {
		g, err := f.Glyph(r)
		if err != nil {
			return nil, fmt.Errorf("scroll: character %d: %w", i, err)
		}
		s.glyphs = append(s.glyphs, g)
	}
	return s, nil
}

// Next returns the next frame, or false once every pair has been shown.
func (s *Scroller) Next() (Frame, bool) {
	f, ok := s.Peek()
	if ok {
		s.advance()
	}
	return f, ok
}

// Peek returns the frame Next would return without consuming it.
func (s *Scroller) Peek() (Frame, bool) {
	if s.pair >= s.pairs() {
		return Frame{}, false
	}
	return Merge(s.glyphs[s.pair], s.glyphs[s.pair+1], s.offset), true
}

func (s *Scroller) advance() {
	s.offset++
	if s.offset == FramesPerPair {
		s.offset = 0
		s.pair++
	}
}

// Len returns the total number of frames of the message.
func (s *Scroller) Len() int {
	return s.pairs() * FramesPerPair
}

// Remaining returns how many frames Next has yet to produce.
func (s *Scroller) Remaining() int {
	return s.Len() - s.pair*FramesPerPair - int(s.offset)
}

// Reset rewinds to the first frame.
func (s *Scroller) Reset() {
	s.pair, s.offset = 0, 0
}

func (s *Scroller) pairs() int {
	if len(s.glyphs) < 2 {
		return 0
	}
	return len(s.glyphs) - 1
}

// Renderer feeds scrolled frames to a Sink.
type Renderer struct {
	Sink Sink
	Font Font
	// Sleep defaults to time.Sleep.
	Sleep Sleeper
}

// Scroll drives the whole message to completion, waiting frameDelay between
// consecutive frames and not after the last one. A negative delay counts as 0.
func (r *Renderer) Scroll(message string, frameDelay time.Duration) error {
	return r.ScrollContext(context.Background(), message, frameDelay)
}

// ScrollContext is Scroll with cancellation checked between frames.
func (r *Renderer) ScrollContext(ctx context.Context, message string, frameDelay time.Duration) error {
	s, err := NewScroller(r.Font, message)
	if err != nil {
		return err
	}
	return r.Play(ctx, s, frameDelay)
}

// Play sends the remaining frames of s. It returns ctx.Err() when ctx is done
// before a frame is sent.
func (r *Renderer) Play(ctx context.Context, s *Scroller, frameDelay time.Duration) error {
	if frameDelay < 0 {
		frameDelay = 0
	}
	for first := true; ; first = false {
		if s.Remaining() == 0 {
			return nil
		}
		if !first {
			r.sleeper().Sleep(frameDelay)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.Step(s); err != nil {
			return err
		}
	}
}

// Step sends the next frame of s. It reports false when s is exhausted.
// s only moves on once the sink accepts the frame, so after an error the
// next Step sends the same frame again.
func (r *Renderer) Step(s *Scroller) (bool, error) {
	n := s.Len() - s.Remaining()
	f, ok := s.Peek()
	if !ok {
		return false, nil
	}
	if err := r.Sink.SendFrame(f[:]); err != nil {
		return true, fmt.Errorf("scroll: frame %d: %w", n, err)
	}
	s.advance()
	return true, nil
}

func (r *Renderer) sleeper() Sleeper {
	if r.Sleep == nil {
		return SleepFunc(time.Sleep)
	}
	return r.Sleep
}
