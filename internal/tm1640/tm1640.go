package tm1640

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	// Data commands
	cmdAutoIncrement byte = 0x40
	cmdFixedAddress  byte = 0x44

	// Address command, OR'd with the grid offset
	cmdAddress byte = 0xC0

	// Display control command, OR'd with the intensity and optDisplayOn
	cmdDisplayControl byte = 0x80
	optDisplayOn      byte = 0x08

	// MaxIntensity is the brightest level. 0 is the dimmest.
	MaxIntensity = 7
	// MaxGrids is the size of the controller's display RAM.
	MaxGrids = 16
)

// ErrCorrupted is returned by every operation after a hardware failure left
// the controller in an unknown framing state. Call Reinit to recover.
var ErrCorrupted = errors.New("controller framing lost, reinitialization required")

// HardwareIOError reports a failed write to one of the two protocol lines.
type HardwareIOError struct {
	Pin   string
	Level gpio.Level
	Err   error
}

func (e *HardwareIOError) Error() string {
	return fmt.Sprintf("hardware I/O: driving %s %s: %v", e.Pin, e.Level, e.Err)
}

func (e *HardwareIOError) Unwrap() error {
	return e.Err
}

// Opts is the configuration for the TM1640 display.
type Opts struct {
	// Intensity applied at initialization, clamped to 0..MaxIntensity.
	Intensity int
	// Active switches the display on at initialization.
	Active bool
	// Grids is the number of RAM bytes written by Clear (default: 8).
	Grids int
	// EdgeDelay is waited after every clock edge. Zero leaves the timing to
	// the GPIO call overhead.
	EdgeDelay time.Duration
}

// DefaultOpts is used when New is called with nil options.
var DefaultOpts = Opts{
	Intensity: MaxIntensity,
	Active:    true,
	Grids:     8,
}

// Dev is a handle to a TM1640 controller.
type Dev struct {
	clk  gpio.PinOut
	data gpio.PinOut
	// Intensity and Active hold the last requested control state.
	opts Opts

	// Control state the controller last accepted.
	intensity int
	active    bool

	// Mirror of the display RAM as last written.
	ram [MaxGrids]byte

	// First hardware failure since the last initialization.
	fault error
}

// New takes control of the clock and data lines and initializes the
// controller: both lines idle high, the display RAM is cleared and the
// intensity and active state from opts are applied.
//
// opts can be nil to use DefaultOpts.
func New(clk, data gpio.PinOut, opts *Opts) (*Dev, error) {
	if clk == nil || data == nil {
		return nil, errors.New("tm1640: clock and data pins are required")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.Grids == 0 {
		o.Grids = DefaultOpts.Grids
	}
	if o.Grids < 0 || o.Grids > MaxGrids {
		return nil, fmt.Errorf("tm1640: grids must be between 1 and %d", MaxGrids)
	}
	if o.EdgeDelay < 0 {
		o.EdgeDelay = 0
	}

	d := &Dev{clk: clk, data: data, opts: o}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("tm1640{clk=%s, data=%s}", d.clk.Name(), d.data.Name())
}

// Halt switches the display off. The display RAM is kept, so pixels come back
// unchanged on SetActive(true).
func (d *Dev) Halt() error {
	return d.SetActive(false)
}

// Reinit runs the full initialization sequence again, restoring the last
// requested intensity and active state, including requests refused while the
// Dev was corrupted. The display RAM is cleared.
func (d *Dev) Reinit() error {
	return d.init()
}

// Brightness returns the intensity last accepted by the controller.
func (d *Dev) Brightness() int {
	return d.intensity
}

// Active reports whether the controller was last told to switch the display
// on.
func (d *Dev) Active() bool {
	return d.active
}

// Grids returns the number of RAM bytes making up a full frame.
func (d *Dev) Grids() int {
	return d.opts.Grids
}

// SendByte clocks out one byte, least significant bit first.
func (d *Dev) SendByte(b byte) error {
	return d.run("send byte", func() error { return d.sendByte(b) })
}

// SendCommand sends a single command byte framed by the start cue and the
// terminator.
func (d *Dev) SendCommand(cmd byte) error {
	return d.run("send command", func() error { return d.sendCommand(cmd) })
}

// SendDataAt writes one byte to a fixed grid address. addr must be in
// 0..MaxGrids-1; it is not validated.
func (d *Dev) SendDataAt(addr, b byte) error {
	return d.run("send data", func() error {
		if err := d.sendCommand(cmdFixedAddress); err != nil {
			return err
		}
		if err := d.setData(gpio.Low); err != nil {
			return err
		}
		if err := d.sendByte(cmdAddress | addr); err != nil {
			return err
		}
		if err := d.sendByte(b); err != nil {
			return err
		}
		if err := d.terminate(); err != nil {
			return err
		}
		d.ram[addr&(MaxGrids-1)] = b
		return nil
	})
}

// SendFrame writes frame to consecutive grids starting at address 0 using the
// auto-increment mode. Any length is sent as given.
func (d *Dev) SendFrame(frame []byte) error {
	return d.run("send frame", func() error { return d.sendFrame(frame) })
}

// Clear switches every LED off by writing Grids zero bytes.
func (d *Dev) Clear() error {
	return d.SendFrame(make([]byte, d.opts.Grids))
}

// Terminate sends the end-of-transfer sequence.
func (d *Dev) Terminate() error {
	return d.run("terminate", d.terminate)
}

// SetBrightness requests level clamped to 0..MaxIntensity and re-issues the
// display control command. Out of range levels are not an error. Brightness
// only changes once the command went out. A failed request is kept and
// applied by Reinit.
func (d *Dev) SetBrightness(level int) error {
	d.opts.Intensity = clamp(level, 0, MaxIntensity)
	return d.run("set brightness", d.sendControl)
}

// SetActive switches the display on or off. Intensity and on/off share one
// register, so both are sent. Like SetBrightness, a failed request is kept
// for Reinit.
func (d *Dev) SetActive(on bool) error {
	d.opts.Active = on
	return d.run("set active", d.sendControl)
}

// sendControl sends the requested intensity and on/off state and records
// them as applied.
func (d *Dev) sendControl() error {
	if err := d.sendCommand(d.control()); err != nil {
		return err
	}
	d.intensity, d.active = d.opts.Intensity, d.opts.Active
	return nil
}

func (d *Dev) init() error {
	d.fault = nil
	err := d.run("init", func() error {
		if err := d.setClock(gpio.Low); err != nil {
			return err
		}
		if err := d.setClock(gpio.High); err != nil {
			return err
		}
		return d.setData(gpio.High)
	})
	if err != nil {
		return err
	}
	if err := d.Clear(); err != nil {
		return err
	}
	d.opts.Intensity = clamp(d.opts.Intensity, 0, MaxIntensity)
	return d.run("set brightness", d.sendControl)
}

// run refuses to start on a corrupted controller and prefixes errors with op.
func (d *Dev) run(op string, f func() error) error {
	if d.fault != nil {
		return fmt.Errorf("tm1640: %s: %w", op, ErrCorrupted)
	}
	if err := f(); err != nil {
		return fmt.Errorf("tm1640: %s: %w", op, err)
	}
	return nil
}

func (d *Dev) control() byte {
	c := cmdDisplayControl | byte(d.opts.Intensity)
	if d.opts.Active {
		c |= optDisplayOn
	}
	return c
}

func (d *Dev) sendByte(b byte) error {
	for i := 0; i < 8; i++ {
		if err := d.setClock(gpio.Low); err != nil {
			return err
		}
		if err := d.setData(b&1 == 1); err != nil {
			return err
		}
		b >>= 1
		if err := d.setClock(gpio.High); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dev) sendCommand(cmd byte) error {
	if err := d.setData(gpio.Low); err != nil {
		return err
	}
	if err := d.sendByte(cmd); err != nil {
		return err
	}
	return d.terminate()
}

func (d *Dev) sendFrame(frame []byte) error {
	if err := d.sendCommand(cmdAutoIncrement); err != nil {
		return err
	}
	if err := d.setData(gpio.Low); err != nil {
		return err
	}
	if err := d.sendByte(cmdAddress); err != nil {
		return err
	}
	for _, b := range frame {
		if err := d.sendByte(b); err != nil {
			return err
		}
	}
	if err := d.terminate(); err != nil {
		return err
	}
	copy(d.ram[:], frame)
	return nil
}

func (d *Dev) terminate() error {
	if err := d.setData(gpio.Low); err != nil {
		return err
	}
	if err := d.setClock(gpio.Low); err != nil {
		return err
	}
	if err := d.setClock(gpio.High); err != nil {
		return err
	}
	return d.setData(gpio.High)
}

func (d *Dev) setClock(l gpio.Level) error {
	if err := d.out(d.clk, l); err != nil {
		return err
	}
	if d.opts.EdgeDelay > 0 {
		time.Sleep(d.opts.EdgeDelay)
	}
	return nil
}

func (d *Dev) setData(l gpio.Level) error {
	return d.out(d.data, l)
}

func (d *Dev) out(p gpio.PinOut, l gpio.Level) error {
	if err := p.Out(l); err != nil {
		d.fault = &HardwareIOError{Pin: p.Name(), Level: l, Err: err}
		return d.fault
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
