// Package tm1640sim emulates the controller side of a TM1640 wire.
//
// A Controller hands out two gpio.PinOut implementations. Every level change
// on them is decoded the way the chip does it: a data fall while the clock is
// high opens a transfer, rising clock edges shift in bits LSB first, and a
// data rise while the clock is high closes the transfer. Complete transfers
// are applied to a 16 byte display RAM and the display control register.
package tm1640sim

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// Pin is one of the two simulated protocol lines.
type Pin struct {
	gpiotest.Pin
	c     *Controller
	clock bool
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	prev := p.Read()
	if err := p.Pin.Out(l); err != nil {
		return err
	}
	if prev != l {
		p.c.edge(p.clock, l)
	}
	return nil
}

// Controller decodes transfers sent over its clock and data pins.
type Controller struct {
	clk  *Pin
	data *Pin

	open  bool
	cur   byte
	nbits int
	buf   []byte
	fixed bool

	// RAM is the display memory, one byte per grid.
	RAM [16]byte
	// Brightness is the intensity from the last display control command.
	Brightness int
	// On is the display on/off bit from the last display control command.
	On bool
	// Transfers lists every complete transfer in order.
	Transfers [][]byte
	// Writes counts transfers that updated RAM.
	Writes int

	// OnWrite, when set, is called after every RAM update.
	OnWrite func(c *Controller)
}

// New returns a Controller with both lines low.
func New() *Controller {
	c := &Controller{}
	c.clk = &Pin{Pin: gpiotest.Pin{N: "SIM_CLK", Num: 0}, c: c, clock: true}
	c.data = &Pin{Pin: gpiotest.Pin{N: "SIM_DIO", Num: 1}, c: c}
	return c
}

func (c *Controller) String() string {
	return fmt.Sprintf("tm1640sim{on=%t, brightness=%d}", c.On, c.Brightness)
}

// Clock returns the clock line.
func (c *Controller) Clock() *Pin {
	return c.clk
}

// Data returns the data line.
func (c *Controller) Data() *Pin {
	return c.data
}

// Frame returns a copy of the first n bytes of RAM.
func (c *Controller) Frame(n int) []byte {
	if n > len(c.RAM) {
		n = len(c.RAM)
	}
	out := make([]byte, n)
	copy(out, c.RAM[:n])
	return out
}

// Visible returns what the LEDs show: the first n bytes of RAM, or zeros
// while the display is off.
func (c *Controller) Visible(n int) []byte {
	f := c.Frame(n)
	if !c.On {
		for i := range f {
			f[i] = 0
		}
	}
	return f
}

// ResetLog forgets recorded transfers. RAM and registers are kept.
func (c *Controller) ResetLog() {
	c.Transfers = nil
	c.Writes = 0
}

func (c *Controller) edge(clock bool, l gpio.Level) {
	if clock {
		if l == gpio.High && c.open {
			c.shiftIn(c.data.Read())
		}
		return
	}
	// Data changes while the clock is low are bit setup.
	if c.clk.Read() != gpio.High {
		return
	}
	if l == gpio.Low {
		if !c.open {
			c.open = true
			c.buf = nil
			c.cur, c.nbits = 0, 0
		}
		return
	}
	if c.open {
		c.stop()
	}
}

func (c *Controller) shiftIn(l gpio.Level) {
	if l == gpio.High {
		c.cur |= 1 << uint(c.nbits)
	}
	c.nbits++
	if c.nbits == 8 {
		c.buf = append(c.buf, c.cur)
		c.cur, c.nbits = 0, 0
	}
}

func (c *Controller) stop() {
	c.open = false
	// Bits clocked by the terminator never form a full byte.
	c.cur, c.nbits = 0, 0
	if len(c.buf) == 0 {
		return
	}
	t := c.buf
	c.buf = nil
	c.Transfers = append(c.Transfers, t)
	c.apply(t)
}

func (c *Controller) apply(t []byte) {
	cmd := t[0]
	switch cmd & 0xC0 {
	case 0x40:
		c.fixed = cmd&0x04 != 0
	case 0x80:
		c.Brightness = int(cmd & 0x07)
		c.On = cmd&0x08 != 0
	case 0xC0:
		addr := cmd & 0x0F
		for i, b := range t[1:] {
			a := addr
			if !c.fixed {
				a = (addr + byte(i)) & 0x0F
			}
			c.RAM[a] = b
		}
		c.Writes++
		if c.OnWrite != nil {
			c.OnWrite(c)
		}
	}
}
