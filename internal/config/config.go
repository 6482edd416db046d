package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/ledmatrix/internal/sequence"
	"github.com/coreman2200/ledmatrix/internal/tm1640"
)

type Pins struct {
	Clock string `yaml:"clock"` // e.g. GPIO14
	Data  string `yaml:"data"`  // e.g. GPIO13
}

type Display struct {
	// Intensity and Active are pointers so 0 and false can override flags.
	Intensity   *int  `yaml:"intensity,omitempty"`
	Active      *bool `yaml:"active,omitempty"`
	Grids       int   `yaml:"grids,omitempty"`
	EdgeDelayUs int   `yaml:"edge_delay_us,omitempty"`
}

type Font struct {
	MissingGlyph string `yaml:"missing_glyph,omitempty"` // "error" | "blank"
	ReverseRows  bool   `yaml:"reverse_rows,omitempty"`
}

type Config struct {
	Driver string `yaml:"driver"` // "gpio" | "sim"
	Pins   Pins   `yaml:"pins"`

	Display Display `yaml:"display"`
	Font    Font    `yaml:"font,omitempty"`

	Message      string `yaml:"message,omitempty"`
	FrameDelayMS int    `yaml:"frame_delay_ms,omitempty"`
	Loop         bool   `yaml:"loop,omitempty"`
	Addr         string `yaml:"addr,omitempty"`

	Program *sequence.Program `yaml:"program,omitempty"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate rejects values no component can honour. Intensity is not checked
// since the driver clamps it.
func (c *Config) Validate() error {
	switch c.Driver {
	case "", "gpio", "sim":
	default:
		return fmt.Errorf("config: unknown driver %q", c.Driver)
	}
	switch c.Font.MissingGlyph {
	case "", "error", "blank":
	default:
		return fmt.Errorf("config: missing_glyph must be error or blank, got %q", c.Font.MissingGlyph)
	}
	if g := c.Display.Grids; g < 0 || g > tm1640.MaxGrids {
		return fmt.Errorf("config: grids must be between 1 and %d", tm1640.MaxGrids)
	}
	if c.Display.EdgeDelayUs < 0 {
		return fmt.Errorf("config: edge_delay_us must not be negative")
	}
	if c.FrameDelayMS < 0 {
		return fmt.Errorf("config: frame_delay_ms must not be negative")
	}
	if c.Program != nil {
		for i, clip := range c.Program.Clips {
			if clip.FrameDelayMS < 0 {
				return fmt.Errorf("config: program clip %d: frame_delay_ms must not be negative", i)
			}
		}
	}
	return nil
}
