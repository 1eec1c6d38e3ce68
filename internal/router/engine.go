package router

import (
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

// OSC address space spoken by the external synthesis engine.
const (
	oscNoteOn        = "/livecore/note_on"
	oscNoteOnFreq    = "/livecore/note_on_freq"
	oscNoteOff       = "/livecore/note_off"
	oscControlChange = "/livecore/cc"
	oscProgramChange = "/livecore/program"
	oscAllNotesOff   = "/livecore/all_notes_off"
	oscPing          = "/livecore/ping"
)

// engineAvailabilityWindow is how long the engine stays marked available
// after a successful send. OSC over UDP gives no delivery feedback, so a
// send error is the only signal the engine went away.
const engineAvailabilityWindow = 30 * time.Second

// enginePingInterval paces the keepalive probes sent from the consumer
// loop. It is well inside the availability window, so an idle but healthy
// engine never falls out of it.
const enginePingInterval = 10 * time.Second

// oscSender is the part of the OSC client the backend uses. Narrowed for
// tests.
type oscSender interface {
	Send(packet osc.Packet) error
}

// EngineBackend talks to an external synthesis engine over OSC. It is the
// highest-priority destination and the only one that honors exact
// frequencies.
type EngineBackend struct {
	mu       sync.Mutex
	client   oscSender
	enabled  bool
	lastSend time.Time
	lastPing time.Time
	lastErr  error
	now      func() time.Time
}

// NewEngineBackend creates an OSC backend aimed at host:port. The backend
// starts enabled; the first failed send marks it unavailable until a Ping
// succeeds.
func NewEngineBackend(host string, port int) *EngineBackend {
	return &EngineBackend{
		client:  osc.NewClient(host, port),
		enabled: true,
		now:     time.Now,
	}
}

func (e *EngineBackend) Name() string { return "engine" }

// Available reports whether the engine looks reachable: enabled, and either
// never contacted or contacted successfully within the availability window.
func (e *EngineBackend) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return false
	}
	if e.lastErr != nil {
		return false
	}
	if e.lastSend.IsZero() {
		return true
	}
	return e.now().Sub(e.lastSend) < engineAvailabilityWindow
}

// SetEnabled toggles the backend without tearing down the client.
func (e *EngineBackend) SetEnabled(enabled bool) {
	e.mu.Lock()
	e.enabled = enabled
	if enabled {
		e.lastErr = nil
	}
	e.mu.Unlock()
}

func (e *EngineBackend) send(msg *osc.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.client.Send(msg)
	e.lastErr = err
	if err == nil {
		e.lastSend = e.now()
	}
	return err
}

// Ping probes the engine and clears a previous send failure on success.
func (e *EngineBackend) Ping() error {
	return e.send(osc.NewMessage(oscPing))
}

// KeepAlive sends a ping when enough time has passed since the previous
// probe. This keeps an idle engine inside the availability window and
// re-detects an engine that came back after a send failure. Called once
// per consumer tick; the pacing makes that cheap.
func (e *EngineBackend) KeepAlive() {
	e.mu.Lock()
	if !e.enabled || e.now().Sub(e.lastPing) < enginePingInterval {
		e.mu.Unlock()
		return
	}
	e.lastPing = e.now()
	e.mu.Unlock()

	// A failed ping leaves lastErr set; Available reflects it.
	_ = e.Ping()
}

func (e *EngineBackend) NoteOn(channel, note, velocity uint8) error {
	return e.send(osc.NewMessage(oscNoteOn,
		int32(channel), int32(note), int32(velocity)))
}

func (e *EngineBackend) NoteOnFreq(channel uint8, freq float64, velocity uint8) error {
	return e.send(osc.NewMessage(oscNoteOnFreq,
		int32(channel), float32(freq), int32(velocity)))
}

func (e *EngineBackend) NoteOff(channel, note uint8) error {
	return e.send(osc.NewMessage(oscNoteOff,
		int32(channel), int32(note)))
}

func (e *EngineBackend) ControlChange(channel, controller, value uint8) error {
	return e.send(osc.NewMessage(oscControlChange,
		int32(channel), int32(controller), int32(value)))
}

func (e *EngineBackend) ProgramChange(channel, program uint8) error {
	return e.send(osc.NewMessage(oscProgramChange,
		int32(channel), int32(program)))
}

func (e *EngineBackend) AllNotesOff(channel uint8) error {
	return e.send(osc.NewMessage(oscAllNotesOff, int32(channel)))
}

// Close marks the backend disabled. The UDP client holds no connection.
func (e *EngineBackend) Close() error {
	e.SetEnabled(false)
	return nil
}
