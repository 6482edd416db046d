package preview

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/extra/devices/screen"
)

func TestASCII(t *testing.T) {
	got := ASCII([]byte{0x01, 0x80, 0x0F})

	assert.Equal(t, "#.......\n.......#\n####....\n", got)
	assert.Equal(t, "", ASCII(nil))
}

func TestFlatten(t *testing.T) {
	im := Flatten([]byte{0x01, 0x00, 0x80})

	assert.Equal(t, image.Rect(0, 0, 24, 1), im.Bounds())
	assert.Equal(t, Lit, im.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{A: 255}, im.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{A: 255}, im.NRGBAAt(8, 0))
	assert.Equal(t, Lit, im.NRGBAAt(23, 0))
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	tx := &Text{W: &buf}

	require.NoError(t, tx.Show([]byte{0xFF}))

	assert.Equal(t, "########\n\n", buf.String())
}

type captureDrawer struct {
	img    *image.NRGBA
	halted bool
}

func (c *captureDrawer) String() string { return "capture" }
func (c *captureDrawer) Halt() error { c.halted = true; return nil }
func (c *captureDrawer) ColorModel() color.Model { return color.NRGBAModel }
func (c *captureDrawer) Bounds() image.Rectangle { return c.img.Bounds() }
func (c *captureDrawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	draw.Draw(c.img, r, src, sp, draw.Src)
	return nil
}

func TestStrip(t *testing.T) {
	d := &captureDrawer{img: image.NewNRGBA(image.Rect(0, 0, 16, 1))}
	s := NewStripOn(d)

	require.NoError(t, s.Show([]byte{0x00, 0x02}))

	assert.Equal(t, Lit, d.img.NRGBAAt(9, 0))
	assert.Equal(t, color.NRGBA{A: 255}, d.img.NRGBAAt(0, 0))

	require.NoError(t, s.Halt())
	assert.True(t, d.halted)
}

func TestConsoleStripSize(t *testing.T) {
	assert.Equal(t, image.Rect(0, 0, 64, 1), screen.New(64).Bounds())
}
