// Package preview shows frames away from the hardware: as text, or as a pixel
// strip on any display.Drawer such as the console emulator of periph extra.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"periph.io/x/conn/v3/display"
	"periph.io/x/extra/devices/screen"
)

// Lit is the color of a lit LED.
var Lit = color.NRGBA{R: 255, G: 48, B: 0, A: 255}

// Shower displays one frame.
type Shower interface {
	Show(frame []byte) error
}

// ASCII renders frame one line per byte, column 0 on the left.
func ASCII(frame []byte) string {
	var b strings.Builder
	for _, row := range frame {
		for x := 0; x < 8; x++ {
			if row>>uint(x)&1 == 1 {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Flatten lays the frame out as a single line of pixels, line after line,
// the way LED strips address their pixels.
func Flatten(frame []byte) *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, len(frame)*8, 1))
	for y, row := range frame {
		for x := 0; x < 8; x++ {
			c := color.NRGBA{A: 255}
			if row>>uint(x)&1 == 1 {
				c = Lit
			}
			im.SetNRGBA(y*8+x, 0, c)
		}
	}
	return im
}

// Text writes ASCII frames to W.
type Text struct {
	W io.Writer
}

func (t *Text) Show(frame []byte) error {
	_, err := fmt.Fprintf(t.W, "%s\n", ASCII(frame))
	return err
}

// Strip draws flattened frames on a one line display.
type Strip struct {
	d display.Drawer
}

// NewStrip returns a Strip on the console emulator, sized for grids lines.
func NewStrip(grids int) *Strip {
	return NewStripOn(screen.New(grids * 8))
}

// NewStripOn returns a Strip drawing on d.
func NewStripOn(d display.Drawer) *Strip {
	return &Strip{d: d}
}

func (s *Strip) Show(frame []byte) error {
	return s.d.Draw(s.d.Bounds(), Flatten(frame), image.Point{})
}

// Halt blanks the strip.
func (s *Strip) Halt() error {
	return s.d.Halt()
}
