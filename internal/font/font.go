// Package font holds 8x8 glyph tables for LED matrices.
//
// A Glyph is 8 row bytes, top row first. Bit i of a row, counting from the
// least significant bit, lights display column i. Tables built from fonts
// that use the opposite bit order are mirrored once at construction with
// WithReversedRows.
package font

import (
	"errors"
	"fmt"
	"math/bits"
)

// Glyph is one 8x8 character cell.
type Glyph [8]byte

// Blank has every pixel off.
var Blank Glyph

// ErrMissingGlyph is returned for characters a Table has no glyph for.
var ErrMissingGlyph = errors.New("font: missing glyph")

// Mirror returns g with every row bit-reversed.
func (g Glyph) Mirror() Glyph {
	for i, row := range g {
		g[i] = Reverse(row)
	}
	return g
}

// Reverse mirrors the bit order of one row.
func Reverse(row byte) byte {
	return bits.Reverse8(row)
}

// Table looks glyphs up by character.
type Table struct {
	glyphs   map[rune]Glyph
	reverse  bool
	fallback *Glyph
}

// Option configures a Table.
type Option func(*Table)

// WithReversedRows mirrors every glyph of the table once, for fonts whose bit 0
// is the rightmost column.
func WithReversedRows() Option {
	return func(t *Table) { t.reverse = true }
}

// WithFallback makes characters without a glyph render as g instead of failing
// with ErrMissingGlyph. g is taken as is and never mirrored.
func WithFallback(g Glyph) Option {
	return func(t *Table) { t.fallback = &g }
}

// NewTable builds a Table from glyphs. The map is copied.
func NewTable(glyphs map[rune]Glyph, opts ...Option) *Table {
	t := &Table{glyphs: make(map[rune]Glyph, len(glyphs))}
	for _, o := range opts {
		o(t)
	}
	for r, g := range glyphs {
		if t.reverse {
			g = g.Mirror()
		}
		t.glyphs[r] = g
	}
	return t
}

// Basic returns a Table of the public domain 8x8 basic font covering
// U+0000 to U+007F.
func Basic(opts ...Option) *Table {
	m := make(map[rune]Glyph, len(basic))
	for i, g := range basic {
		m[rune(i)] = g
	}
	return NewTable(m, opts...)
}

// Glyph returns the glyph for r.
func (t *Table) Glyph(r rune) (Glyph, error) {
	if g, ok := t.glyphs[r]; ok {
		return g, nil
	}
	if t.fallback != nil {
		return *t.fallback, nil
	}
	return Blank, fmt.Errorf("%w for %q (U+%04X)", ErrMissingGlyph, r, r)
}

// Len returns the number of glyphs in the table.
func (t *Table) Len() int {
	return len(t.glyphs)
}
