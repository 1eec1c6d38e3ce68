package tempo

import (
	"sync"

	abletonlink "github.com/DatanoiseTV/abletonlink-go"
)

// linkSession is the production Session over the Ableton Link binding.
// Every read and write goes through the capture/modify/commit sequence the
// protocol requires; the mutex keeps our own capture/commit pairs from
// interleaving. The binding's callbacks fire on Link's network thread.
type linkSession struct {
	mu   sync.Mutex
	link *abletonlink.Link
}

func newLinkSession(bpm float64) *linkSession {
	return &linkSession{link: abletonlink.NewLink(bpm)}
}

func (ls *linkSession) Enable(enabled bool) {
	ls.link.Enable(enabled)
}

func (ls *linkSession) IsEnabled() bool {
	return ls.link.IsEnabled()
}

func (ls *linkSession) NumPeers() uint64 {
	return ls.link.NumPeers()
}

func (ls *linkSession) Tempo() float64 {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	state := abletonlink.NewSessionState()
	defer state.Destroy()
	ls.link.CaptureAppSessionState(state)
	return state.Tempo()
}

func (ls *linkSession) SetTempo(bpm float64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	state := abletonlink.NewSessionState()
	defer state.Destroy()
	ls.link.CaptureAppSessionState(state)
	state.SetTempo(bpm, ls.link.ClockMicros())
	ls.link.CommitAppSessionState(state)
}

func (ls *linkSession) Beat(quantum float64) float64 {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	state := abletonlink.NewSessionState()
	defer state.Destroy()
	ls.link.CaptureAppSessionState(state)
	return state.BeatAtTime(ls.link.ClockMicros(), quantum)
}

func (ls *linkSession) Phase(quantum float64) float64 {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	state := abletonlink.NewSessionState()
	defer state.Destroy()
	ls.link.CaptureAppSessionState(state)
	return state.PhaseAtTime(ls.link.ClockMicros(), quantum)
}

func (ls *linkSession) IsPlaying() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	state := abletonlink.NewSessionState()
	defer state.Destroy()
	ls.link.CaptureAppSessionState(state)
	return state.IsPlaying()
}

func (ls *linkSession) SetPlaying(playing bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	state := abletonlink.NewSessionState()
	defer state.Destroy()
	ls.link.CaptureAppSessionState(state)
	state.SetIsPlaying(playing, uint64(ls.link.ClockMicros()))
	ls.link.CommitAppSessionState(state)
}

func (ls *linkSession) EnableStartStopSync(enabled bool) {
	ls.link.EnableStartStopSync(enabled)
}

func (ls *linkSession) IsStartStopSyncEnabled() bool {
	return ls.link.IsStartStopSyncEnabled()
}

func (ls *linkSession) SetCallbacks(onPeers func(uint64), onTempo func(float64), onTransport func(bool)) {
	ls.link.SetNumPeersCallback(onPeers)
	ls.link.SetTempoCallback(onTempo)
	ls.link.SetStartStopCallback(onTransport)
}

func (ls *linkSession) Close() {
	ls.link.Destroy()
}
