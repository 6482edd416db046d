package tm1640

import (
	"image"
	"image/color"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

var _ display.Drawer = &Dev{}

// ColorModel implements display.Drawer. LEDs are either on or off.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer. Columns map to x and grids to y.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, 8, d.opts.Grids)
}

// Draw implements display.Drawer.
//
// Pixels of src converted to image1bit.On light the LED at the same position.
// LEDs outside r keep their last written state; the whole frame is resent.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	frame := make([]byte, d.opts.Grids)
	copy(frame, d.ram[:])

	r = r.Intersect(d.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := image1bit.BitModel.Convert(src.At(sp.X+x-r.Min.X, sp.Y+y-r.Min.Y)).(image1bit.Bit)
			if c {
				frame[y] |= 1 << uint(x)
			} else {
				frame[y] &^= 1 << uint(x)
			}
		}
	}
	return d.SendFrame(frame)
}
