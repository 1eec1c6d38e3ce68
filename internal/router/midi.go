package router

import (
	"strings"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters the driver

	"github.com/livecore-audio/livecore/internal/errors"
)

// MIDIBackend sends raw MIDI to a hardware or virtual output port. Lowest
// routing priority; it carries no frequency information, so exact-frequency
// notes arrive quantized to the nearest pitch.
type MIDIBackend struct {
	mu       sync.Mutex
	portName string
	send     func(gomidi.Message) error
	stop     func()
}

// NewMIDIBackend opens the output port whose name contains portName
// (case-insensitive). An empty portName picks the first available port.
func NewMIDIBackend(portName string) (*MIDIBackend, error) {
	port, err := findOutPort(portName)
	if err != nil {
		return nil, err
	}

	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryMIDI).
			Context("port", port.String()).
			Build()
	}

	return &MIDIBackend{
		portName: port.String(),
		send:     send,
		stop:     func() { _ = port.Close() },
	}, nil
}

func findOutPort(name string) (drivers.Out, error) {
	outs := gomidi.GetOutPorts()
	if len(outs) == 0 {
		return nil, errors.Newf("no MIDI output ports").
			Category(errors.CategoryMIDI).
			Build()
	}
	if name == "" {
		return outs[0], nil
	}

	needle := strings.ToLower(name)
	for _, out := range outs {
		if strings.Contains(strings.ToLower(out.String()), needle) {
			return out, nil
		}
	}
	return nil, errors.Newf("MIDI output port not found").
		Category(errors.CategoryMIDI).
		Context("port", name).
		Build()
}

// ListOutPorts returns the names of all MIDI output ports.
func ListOutPorts() []string {
	outs := gomidi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names
}

func (m *MIDIBackend) Name() string { return "midi" }

// PortName returns the resolved output port name.
func (m *MIDIBackend) PortName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portName
}

func (m *MIDIBackend) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send != nil
}

func (m *MIDIBackend) sendMsg(msg gomidi.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.send == nil {
		return errors.ErrBackendUnavailable
	}
	return m.send(msg)
}

func (m *MIDIBackend) NoteOn(channel, note, velocity uint8) error {
	return m.sendMsg(gomidi.NoteOn(channel, note, velocity))
}

func (m *MIDIBackend) NoteOff(channel, note uint8) error {
	return m.sendMsg(gomidi.NoteOff(channel, note))
}

func (m *MIDIBackend) ControlChange(channel, controller, value uint8) error {
	return m.sendMsg(gomidi.ControlChange(channel, controller, value))
}

func (m *MIDIBackend) ProgramChange(channel, program uint8) error {
	return m.sendMsg(gomidi.ProgramChange(channel, program))
}

func (m *MIDIBackend) AllNotesOff(channel uint8) error {
	// CC 123: all notes off.
	return m.sendMsg(gomidi.ControlChange(channel, 123, 0))
}

// Close releases the port. Further sends report the backend unavailable.
func (m *MIDIBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	m.send = nil
	return nil
}
