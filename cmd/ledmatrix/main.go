package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/coreman2200/ledmatrix/internal/app"
	"github.com/coreman2200/ledmatrix/internal/config"
	"github.com/coreman2200/ledmatrix/internal/font"
	"github.com/coreman2200/ledmatrix/internal/preview"
	"github.com/coreman2200/ledmatrix/internal/sequence"
	"github.com/coreman2200/ledmatrix/internal/tm1640"
	"github.com/coreman2200/ledmatrix/internal/tm1640sim"
	"github.com/coreman2200/ledmatrix/internal/ws"
)

func main() {
	// ---- Flags (config.yaml overrides them where set) ----
	var (
		driver      = flag.String("driver", "gpio", "driver: gpio | sim")
		clkName     = flag.String("clk", "GPIO14", "clock pin name")
		dataName    = flag.String("data", "GPIO13", "data pin name")
		intensity   = flag.Int("intensity", 0, "brightness 0..7")
		grids       = flag.Int("grids", 8, "display lines")
		edgeDelayUs = flag.Int("edge-delay-us", 0, "wait after every clock edge (µs)")
		delayMS     = flag.Int("delay", 50, "frame delay (ms)")
		message     = flag.String("message", "Hello, World! ", "message to scroll")
		loop        = flag.Bool("loop", false, "repeat the message")
		blank       = flag.Bool("blank-missing", false, "draw characters missing from the font as blanks")
		previewKind = flag.String("preview", "text", "sim preview: text | strip | none")
		addr        = flag.String("addr", ":8080", "HTTP listen address (empty disables)")
		configPath  = flag.String("config", "config.yaml", "path to config.yaml")
		simOnly     = flag.Bool("sim-only", false, "force simulation (no hardware output)")
		debug       = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Load config.yaml (optional) ----
	var cfg *config.Config
	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	} else {
		cfg = c
	}

	// ---- Effective params (config overrides flags where available) ----
	selected := *driver
	eClk, eData := *clkName, *dataName
	opts := tm1640.Opts{
		Intensity: *intensity,
		Active:    true,
		Grids:     *grids,
		EdgeDelay: time.Duration(*edgeDelayUs) * time.Microsecond,
	}
	eDelay := *delayMS
	eMessage, eLoop, eBlank := *message, *loop, *blank
	eAddr := *addr
	reverse := false
	var prog *sequence.Program

	if cfg != nil {
		if cfg.Driver != "" {
			selected = cfg.Driver
		}
		eClk = firstNonEmpty(cfg.Pins.Clock, eClk)
		eData = firstNonEmpty(cfg.Pins.Data, eData)
		if cfg.Display.Intensity != nil {
			opts.Intensity = *cfg.Display.Intensity
		}
		if cfg.Display.Active != nil {
			opts.Active = *cfg.Display.Active
		}
		if cfg.Display.Grids > 0 {
			opts.Grids = cfg.Display.Grids
		}
		if cfg.Display.EdgeDelayUs > 0 {
			opts.EdgeDelay = time.Duration(cfg.Display.EdgeDelayUs) * time.Microsecond
		}
		if cfg.FrameDelayMS > 0 {
			eDelay = cfg.FrameDelayMS
		}
		eMessage = firstNonEmpty(cfg.Message, eMessage)
		eLoop = eLoop || cfg.Loop
		eAddr = firstNonEmpty(cfg.Addr, eAddr)
		switch cfg.Font.MissingGlyph {
		case "blank":
			eBlank = true
		case "error":
			eBlank = false
		}
		reverse = cfg.Font.ReverseRows
		prog = cfg.Program
	}
	if *simOnly {
		selected = "sim"
	}

	// ---- Pins ----
	var clk, data gpio.PinOut
	var sim *tm1640sim.Controller
	switch selected {
	case "gpio":
		var err error
		clk, data, err = openPins(eClk, eData)
		if err != nil {
			log.Warn().Err(err).
				Str("driver", "gpio").
				Str("clk", eClk).
				Str("data", eData).
				Msg("GPIO init failed; falling back to SIM")
			selected = "sim"
		}
	case "sim":
	default:
		log.Warn().Str("driver", selected).Msg("unknown driver; using SIM")
		selected = "sim"
	}
	if selected == "sim" {
		sim = tm1640sim.New()
		clk, data = sim.Clock(), sim.Data()
		if sh := newPreview(*previewKind, opts.Grids); sh != nil {
			n := opts.Grids
			sim.OnWrite = func(c *tm1640sim.Controller) {
				if err := sh.Show(c.Visible(n)); err != nil {
					log.Debug().Err(err).Msg("preview")
				}
			}
		}
	}

	// ---- Display ----
	dev, err := tm1640.New(clk, data, &opts)
	if err != nil {
		log.Fatal().Err(err).Str("driver", selected).Msg("display init failed")
	}
	log.Info().Str("dev", dev.String()).Int("intensity", dev.Brightness()).Int("grids", dev.Grids()).Msg("display ready")

	var fontOpts []font.Option
	if reverse {
		fontOpts = append(fontOpts, font.WithReversedRows())
	}
	if eBlank {
		fontOpts = append(fontOpts, font.WithFallback(font.Blank))
	}

	// ---- Conductor ----
	state := ws.NewState(selected, dev.Grids())
	cond := app.NewConductor(dev, font.Basic(fontOpts...), state)
	cond.LoopMessages = eLoop
	cond.Seq.DefaultDelay = time.Duration(eDelay) * time.Millisecond

	if prog == nil {
		prog = &sequence.Program{Version: "scroll.v1", Loop: eLoop, Clips: []sequence.Clip{{Name: "message", Message: eMessage}}}
	}
	if err := cond.Seq.Load(*prog); err != nil {
		log.Fatal().Err(err).Msg("program load failed")
	}
	cond.Seq.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- HTTP routes ----
	var srv *http.Server
	if eAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", state.HandleFramesWS)
		mux.HandleFunc("/diag", state.HandleDiagWS)
		mux.HandleFunc("/control", state.HandleControlWS)
		mux.HandleFunc("/health", state.HandleHealth)

		srv = &http.Server{
			Addr:         eAddr,
			Handler:      withCORS(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", eAddr).Str("driver", selected).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("http server crashed")
			}
		}()
	}

	// ---- Run until signalled ----
	if err := cond.Run(ctx); err != nil {
		log.Error().Err(err).Msg("display not cleared")
	}
	log.Info().Msg("shutting down")

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
}

// openPins initializes the host drivers and looks both pins up by name.
func openPins(clkName, dataName string) (gpio.PinOut, gpio.PinOut, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, err
	}
	clk := gpioreg.ByName(clkName)
	if clk == nil {
		return nil, nil, fmt.Errorf("no pin named %q", clkName)
	}
	data := gpioreg.ByName(dataName)
	if data == nil {
		return nil, nil, fmt.Errorf("no pin named %q", dataName)
	}
	return clk, data, nil
}

func newPreview(kind string, grids int) preview.Shower {
	switch kind {
	case "text":
		return &preview.Text{W: os.Stdout}
	case "strip":
		return preview.NewStrip(grids)
	default:
		return nil
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
