// Package testpattern generates wiring check frames for the matrix.
package testpattern

import "fmt"

type Kind string

const (
	None        Kind = ""
	ColumnSweep Kind = "column_sweep"
	RowSweep    Kind = "row_sweep"
	AllOn       Kind = "all_on"
	Checker     Kind = "checker"
)

// Kinds lists every pattern in the order they are documented.
var Kinds = []Kind{ColumnSweep, RowSweep, AllOn, Checker}

// Parse resolves a pattern name.
func Parse(name string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return None, fmt.Errorf("testpattern: unknown pattern %q", name)
}

type Runner struct {
	kind Kind
	step int
}

func NewRunner(k Kind) *Runner { return &Runner{kind: k} }

func (r *Runner) Kind() Kind { return r.kind }

// Step fills frame with the next pattern frame and returns false when the
// pattern is complete. len(frame) is the number of display lines.
func (r *Runner) Step(frame []byte) bool {
	for i := range frame {
		frame[i] = 0
	}

	switch r.kind {
	case ColumnSweep:
		if r.step >= 8 {
			return false
		}
		for i := range frame {
			frame[i] = 1 << uint(r.step)
		}
	case RowSweep:
		if r.step >= len(frame) {
			return false
		}
		frame[r.step] = 0xFF
	case AllOn:
		if r.step >= 1 {
			return false
		}
		for i := range frame {
			frame[i] = 0xFF
		}
	case Checker:
		if r.step >= 2 {
			return false
		}
		for i := range frame {
			if (i+r.step)%2 == 0 {
				frame[i] = 0x55
			} else {
				frame[i] = 0xAA
			}
		}
	default:
		return false
	}
	r.step++
	return true
}
