package router

import (
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/livecore-audio/livecore/internal/errors"
)

// Renderer generates audio for the built-in synthesizer. The device's data
// callback calls Render on the audio thread; the note methods are called
// from the routing path. Implementations serialize internally.
type Renderer interface {
	NoteOn(channel, note, velocity uint8)
	NoteOff(channel, note uint8)
	ControlChange(channel, controller, value uint8)
	ProgramChange(channel, program uint8)
	AllNotesOff(channel uint8)

	// Render fills out with interleaved stereo float32 frames.
	Render(out []float32)
}

// SynthBackend drives a Renderer through a miniaudio playback device. It is
// the middle-priority destination, used when no external engine answers but
// the host has a sound card.
type SynthBackend struct {
	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	renderer Renderer
	running  bool

	frameBuf []float32
}

// NewSynthBackend opens a playback device at the given sample rate and
// starts rendering silence. The renderer may be nil, in which case the
// built-in polyphonic voice is used.
func NewSynthBackend(sampleRate int, renderer Renderer) (*SynthBackend, error) {
	if renderer == nil {
		renderer = NewPolyVoice(float64(sampleRate))
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryAudioBackend).
			Context("stage", "context_init").
			Build()
	}

	s := &SynthBackend{
		ctx:      ctx,
		renderer: renderer,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: s.onFrames,
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, errors.New(err).
			Category(errors.CategoryAudioBackend).
			Context("stage", "device_init").
			Context("sample_rate", sampleRate).
			Build()
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, errors.New(err).
			Category(errors.CategoryAudioBackend).
			Context("stage", "device_start").
			Build()
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	return s, nil
}

// onFrames runs on the audio thread. pOutput is interleaved stereo f32.
func (s *SynthBackend) onFrames(pOutput, _ []byte, frameCount uint32) {
	samples := int(frameCount) * 2

	s.mu.Lock()
	if cap(s.frameBuf) < samples {
		s.frameBuf = make([]float32, samples)
	}
	buf := s.frameBuf[:samples]
	renderer := s.renderer
	s.mu.Unlock()

	for i := range buf {
		buf[i] = 0
	}
	renderer.Render(buf)

	// Reinterpret the output bytes as float32 little endian, matching the
	// device format requested at init.
	for i, v := range buf {
		bits := math.Float32bits(v)
		pOutput[i*4] = byte(bits)
		pOutput[i*4+1] = byte(bits >> 8)
		pOutput[i*4+2] = byte(bits >> 16)
		pOutput[i*4+3] = byte(bits >> 24)
	}
}

func (s *SynthBackend) Name() string { return "synth" }

// SetEnabled pauses or resumes the playback device without tearing down
// the audio context, so the backend can be pre-armed and toggled from a
// UI without reopening hardware.
func (s *SynthBackend) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil || s.running == enabled {
		return nil
	}

	var err error
	if enabled {
		err = s.device.Start()
	} else {
		err = s.device.Stop()
	}
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryAudioBackend).
			Context("enabled", enabled).
			Build()
	}
	s.running = enabled
	return nil
}

func (s *SynthBackend) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SynthBackend) NoteOn(channel, note, velocity uint8) error {
	s.renderer.NoteOn(channel, note, velocity)
	return nil
}

func (s *SynthBackend) NoteOff(channel, note uint8) error {
	s.renderer.NoteOff(channel, note)
	return nil
}

func (s *SynthBackend) ControlChange(channel, controller, value uint8) error {
	s.renderer.ControlChange(channel, controller, value)
	return nil
}

func (s *SynthBackend) ProgramChange(channel, program uint8) error {
	s.renderer.ProgramChange(channel, program)
	return nil
}

func (s *SynthBackend) AllNotesOff(channel uint8) error {
	s.renderer.AllNotesOff(channel)
	return nil
}

// Close stops the device and tears down the audio context.
func (s *SynthBackend) Close() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	_ = s.device.Stop()
	s.device.Uninit()
	err := s.ctx.Uninit()
	s.ctx.Free()

	s.mu.Lock()
	s.device = nil
	s.mu.Unlock()
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryAudioBackend).
			Context("stage", "context_uninit").
			Build()
	}
	return nil
}
