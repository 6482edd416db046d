// Package tm1640 drives LED displays built on the Titan Micro TM1640
// controller, such as the Wemos D1 mini LED matrix shield.
//
// The TM1640 uses an unusual protocol: it is neither I²C nor SPI. Two GPIO
// outputs are bit-banged. Data is latched on the rising edge of the clock,
// least significant bit first. A transfer begins when the data line drops and
// ends with the terminator sequence (data low, clock low, clock high, data
// high).
//
// # Frames
//
// The controller has 16 bytes of display RAM, one per grid. On the 8x8
// matrix shield grid k drives display line k, and bit i of that byte lights
// column i. A frame is the slice of bytes written from grid 0 upward in a
// single auto-increment transfer.
//
// # Failures
//
// Pin writes are not retried. A partial retry would corrupt the controller's
// framing, so the first failed write aborts the operation with a
// *HardwareIOError and the Dev refuses further work (ErrCorrupted) until
// Reinit has run the full initialization sequence again.
//
// A Dev is not safe for concurrent use.
package tm1640
