package diagnostics

import (
	"errors"

	"github.com/coreman2200/ledmatrix/internal/font"
	"github.com/coreman2200/ledmatrix/internal/tm1640"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromError classifies err raised by the display or the renderer.
func FromError(err error) Diagnostic {
	var hw *tm1640.HardwareIOError
	switch {
	case errors.As(err, &hw):
		return Diagnostic{
			Severity: Err,
			Code:     "HW.IO",
			Summary:  "Write to the controller lines failed",
			Detail:   err.Error(),
			LikelyCauses: []string{
				"GPIO line claimed by another process",
				"wrong pin name for clock or data",
			},
			SuggestedFixes: []string{
				"check the clock and data pin names in config.yaml",
				"send the reinit control command once the wiring is fixed",
			},
			Evidence: map[string]any{"pin": hw.Pin, "level": hw.Level.String()},
		}
	case errors.Is(err, tm1640.ErrCorrupted):
		return Diagnostic{
			Severity:       Err,
			Code:           "HW.CORRUPTED",
			Summary:        "Controller needs reinitialization",
			Detail:         err.Error(),
			SuggestedFixes: []string{"send the reinit control command"},
		}
	case errors.Is(err, font.ErrMissingGlyph):
		return Diagnostic{
			Severity:       Warn,
			Code:           "FONT.MISSING_GLYPH",
			Summary:        "Message has characters the font cannot draw",
			Detail:         err.Error(),
			SuggestedFixes: []string{"use ASCII characters", "set missing_glyph: blank in config.yaml"},
		}
	default:
		return Diagnostic{Severity: Err, Code: "GENERIC", Summary: "Unexpected error", Detail: err.Error()}
	}
}
