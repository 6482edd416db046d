package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ledmatrix/internal/sequence"
)

const sample = `driver: gpio
pins:
  clock: GPIO14
  data: GPIO13
display:
  intensity: 0
  active: true
  edge_delay_us: 2
font:
  missing_glyph: blank
message: Hello
frame_delay_ms: 40
program:
  version: scroll.v1
  loop: true
  clips:
    - name: greet
      message: Hi there
      frame_delay_ms: 25
      brightness: 3
    - name: bye
      message: Bye
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpio", c.Driver)
	assert.Equal(t, Pins{Clock: "GPIO14", Data: "GPIO13"}, c.Pins)
	require.NotNil(t, c.Display.Intensity)
	assert.Equal(t, 0, *c.Display.Intensity)
	require.NotNil(t, c.Display.Active)
	assert.True(t, *c.Display.Active)
	assert.Equal(t, 2, c.Display.EdgeDelayUs)
	assert.Equal(t, "blank", c.Font.MissingGlyph)
	assert.Equal(t, 40, c.FrameDelayMS)

	require.NotNil(t, c.Program)
	assert.True(t, c.Program.Loop)
	require.Len(t, c.Program.Clips, 2)
	assert.Equal(t, 25, c.Program.Clips[0].FrameDelayMS)
	require.NotNil(t, c.Program.Clips[0].Brightness)
	assert.Equal(t, 3, *c.Program.Clips[0].Brightness)
	assert.Nil(t, c.Program.Clips[1].Brightness)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	level := 2
	in := &Config{
		Driver:  "sim",
		Display: Display{Intensity: &level},
		Message: "AB",
		Program: &sequence.Program{Clips: []sequence.Clip{{Name: "x", Message: "XY"}}},
	}

	require.NoError(t, Save(path, in))
	out, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, in, out)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"zero", Config{}, true},
		{"sim", Config{Driver: "sim"}, true},
		{"bad driver", Config{Driver: "spi"}, false},
		{"bad glyph policy", Config{Font: Font{MissingGlyph: "skip"}}, false},
		{"too many grids", Config{Display: Display{Grids: 17}}, false},
		{"negative edge delay", Config{Display: Display{EdgeDelayUs: -1}}, false},
		{"negative delay", Config{FrameDelayMS: -1}, false},
		{"negative clip delay", Config{Program: &sequence.Program{Clips: []sequence.Clip{{FrameDelayMS: -5}}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("driver: pwm\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown driver")
}
