package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/ledmatrix/internal/diagnostics"
)

const writeWait = 200 * time.Millisecond

// Commands accepted in Control.Cmd.
const (
	CmdStart  = "start"
	CmdPause  = "pause"
	CmdResume = "resume"
	CmdStop   = "stop"
	CmdClear  = "clear"
	CmdReinit = "reinit"
	CmdTest   = "test"
)

// Control is one request from a control client. Nil fields are left alone.
type Control struct {
	Brightness   *int    `json:"brightness,omitempty"`
	Active       *bool   `json:"active,omitempty"`
	Message      *string `json:"message,omitempty"`
	FrameDelayMS *int    `json:"frameDelayMS,omitempty"`
	Cmd          string  `json:"cmd,omitempty"`
	// Test names the pattern for CmdTest.
	Test string `json:"test,omitempty"`
}

// Status is what /health and control replies report.
type Status struct {
	Driver     string `json:"driver"`
	Grids      int    `json:"grids"`
	Brightness int    `json:"brightness"`
	Active     bool   `json:"active"`
	State      string `json:"state"`
	Message    string `json:"message"`
}

type State struct {
	mu      sync.RWMutex
	status  Status
	frame   []byte
	frameID uint64

	startTime   time.Time
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool

	// Serializes writes, gorilla connections take one writer at a time.
	wmu sync.Mutex

	controls chan Control
}

func NewState(driver string, grids int) *State {
	return &State{
		status:      Status{Driver: driver, Grids: grids},
		frame:       make([]byte, grids),
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		controls:    make(chan Control, 16),
	}
}

// Controls delivers validated control requests. The render loop drains it
// between frames.
func (s *State) Controls() <-chan Control {
	return s.controls
}

// SetStatus replaces the reported display status. Driver and Grids are kept.
func (s *State) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Driver, st.Grids = s.status.Driver, s.status.Grids
	s.status = st
}

// Status returns the last reported display status.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// PublishFrame records frame as the current display content and sends it to
// every preview client.
func (s *State) PublishFrame(frame []byte) {
	s.mu.Lock()
	s.frame = append(s.frame[:0], frame...)
	s.frameID++
	id := s.frameID
	s.mu.Unlock()
	s.broadcastFrame(id, frame)
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	s.sendTopology(conn)

	go s.drain(conn, s.clients)
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()
	s.write(conn, diag.Diagnostic{Severity: diag.Info, Code: "DIAG.CONNECTED", Summary: "Diagnostics stream open"})

	go s.drain(conn, s.diagClients)
}

func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var c Control
		if err := json.Unmarshal(data, &c); err != nil {
			s.PushDiag(diag.Diagnostic{Severity: diag.Warn, Code: "CONTROL.BAD_JSON", Summary: "Control message is not valid JSON", Detail: err.Error()})
			continue
		}
		s.applyControl(c)
		s.write(conn, s.Status())
	}
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := map[string]any{
		"frame_id":   s.frameID,
		"uptime_s":   time.Since(s.startTime).Seconds(),
		"driver":     s.status.Driver,
		"grids":      s.status.Grids,
		"brightness": s.status.Brightness,
		"active":     s.status.Active,
		"state":      s.status.State,
		"message":    s.status.Message,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *State) applyControl(c Control) {
	switch c.Cmd {
	case "", CmdStart, CmdPause, CmdResume, CmdStop, CmdClear, CmdReinit, CmdTest:
	default:
		s.PushDiag(diag.Diagnostic{
			Severity: diag.Warn, Code: "CONTROL.UNKNOWN", Summary: "Unknown control command",
			Evidence: map[string]any{"cmd": c.Cmd},
		})
		return
	}
	if c.FrameDelayMS != nil && *c.FrameDelayMS < 0 {
		s.PushDiag(diag.Diagnostic{
			Severity: diag.Warn, Code: "CONTROL.BAD_DELAY", Summary: "Frame delay must not be negative",
			Evidence: map[string]any{"frameDelayMS": *c.FrameDelayMS},
		})
		return
	}
	select {
	case s.controls <- c:
	default:
		log.Warn().Str("cmd", c.Cmd).Msg("control queue full; dropping request")
		s.PushDiag(diag.Diagnostic{Severity: diag.Warn, Code: "CONTROL.DROPPED", Summary: "Control queue full"})
	}
}

func (s *State) sendTopology(conn *websocket.Conn) {
	s.mu.RLock()
	top := map[string]any{
		"type":     "hello",
		"driver":   s.status.Driver,
		"grids":    s.status.Grids,
		"width":    8,
		"frame_id": s.frameID,
		"rows":     append([]byte(nil), s.frame...),
	}
	s.mu.RUnlock()
	s.write(conn, top)
}

type frameMsg struct {
	Type    string `json:"type"`
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	Rows    []byte `json:"rows"`
}

func (s *State) broadcastFrame(id uint64, frame []byte) {
	b, _ := json.Marshal(frameMsg{Type: "frame", T: time.Now().UnixNano(), FrameID: id, Rows: frame})
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if err := s.writeRaw(c, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

// PushDiag sends d to every diagnostics client.
func (s *State) PushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.diagClients {
		if err := s.writeRaw(c, b); err != nil {
			log.Debug().Err(err).Msg("write diag")
		}
	}
}

// drain reads until the client goes away, then forgets it.
func (s *State) drain(conn *websocket.Conn, set map[*websocket.Conn]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *State) write(conn *websocket.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Debug().Err(err).Msg("marshal")
		return
	}
	if err := s.writeRaw(conn, b); err != nil {
		log.Debug().Err(err).Msg("write")
	}
}

func (s *State) writeRaw(conn *websocket.Conn, b []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
