package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livecore-audio/livecore/internal/events"
	"github.com/livecore-audio/livecore/internal/playback"
)

// stubSession is a minimal in-process tempo session.
type stubSession struct {
	mu      sync.Mutex
	enabled bool
	tempo   float64
	beat    float64
	playing bool

	onPeers     func(uint64)
	onTempo     func(float64)
	onTransport func(bool)
}

func (s *stubSession) Enable(e bool)     { s.mu.Lock(); s.enabled = e; s.mu.Unlock() }
func (s *stubSession) IsEnabled() bool   { s.mu.Lock(); defer s.mu.Unlock(); return s.enabled }
func (s *stubSession) NumPeers() uint64  { return 0 }
func (s *stubSession) Tempo() float64    { s.mu.Lock(); defer s.mu.Unlock(); return s.tempo }
func (s *stubSession) IsPlaying() bool   { s.mu.Lock(); defer s.mu.Unlock(); return s.playing }
func (s *stubSession) SetPlaying(p bool) { s.mu.Lock(); s.playing = p; s.mu.Unlock() }
func (s *stubSession) Close()            {}

func (s *stubSession) SetTempo(bpm float64) {
	s.mu.Lock()
	s.tempo = bpm
	cb := s.onTempo
	s.mu.Unlock()
	if cb != nil {
		cb(bpm)
	}
}

func (s *stubSession) Beat(quantum float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beat
}

func (s *stubSession) setBeat(b float64) {
	s.mu.Lock()
	s.beat = b
	s.mu.Unlock()
}

func (s *stubSession) Phase(quantum float64) float64  { return 0 }
func (s *stubSession) EnableStartStopSync(bool)       {}
func (s *stubSession) IsStartStopSyncEnabled() bool   { return false }

func (s *stubSession) SetCallbacks(onPeers func(uint64), onTempo func(float64), onTransport func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPeers = onPeers
	s.onTempo = onTempo
	s.onTransport = onTransport
}

// nullBackend accepts everything silently.
type nullBackend struct{ name string }

func (n *nullBackend) Name() string                             { return n.name }
func (n *nullBackend) Available() bool                          { return true }
func (n *nullBackend) NoteOn(ch, note, vel uint8) error         { return nil }
func (n *nullBackend) NoteOff(ch, note uint8) error             { return nil }
func (n *nullBackend) ControlChange(ch, ctrl, val uint8) error  { return nil }
func (n *nullBackend) ProgramChange(ch, prog uint8) error       { return nil }
func (n *nullBackend) AllNotesOff(ch uint8) error               { return nil }
func (n *nullBackend) Close() error                             { return nil }

func newTestCore(t *testing.T) (*Core, *stubSession) {
	t.Helper()

	settings := defaultTestSettings()
	session := &stubSession{tempo: settings.Tempo.BPM}

	c, err := New(settings,
		WithSession(session),
		WithBackends(&nullBackend{name: "null"}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, session
}

func TestNewWiresComponents(t *testing.T) {
	t.Parallel()

	c, _ := newTestCore(t)

	assert.NotNil(t, c.Queue)
	assert.NotNil(t, c.Tempo)
	assert.NotNil(t, c.Router)
	assert.NotNil(t, c.Recorder)
	assert.NotNil(t, c.Loops)
	assert.NotNil(t, c.Playback)
	assert.Equal(t, "null", c.Router.Active())
	assert.True(t, c.Tempo.IsEnabled(), "tempo sync enabled per settings")
}

func TestSessionTempoChangeReachesHandler(t *testing.T) {
	t.Parallel()

	c, session := newTestCore(t)

	var got float64
	c.SetHandler(events.KindTempo, func(ev *events.Event, _ any) {
		got = ev.Tempo
	})

	// Simulates the Link network thread committing a new tempo.
	session.SetTempo(140)

	// The notification arrives as a queued event, drained on the next tick.
	c.Tick()
	assert.Equal(t, 140.0, got)
}

func TestLoopFiresThroughTick(t *testing.T) {
	t.Parallel()

	c, session := newTestCore(t)

	var fired []int
	c.SetHandler(events.KindBeat, func(ev *events.Event, _ any) {
		fired = append(fired, ev.Resource)
	})

	c.Loops.Start(3, 4)

	session.setBeat(3.9)
	c.Tick()
	assert.Empty(t, fired)

	// The crossing enqueues a beat event, drained within the same tick.
	session.setBeat(4.1)
	c.Tick()
	assert.Equal(t, []int{3}, fired)
	assert.True(t, c.Loops.IsActive(3))
}

func TestPlaybackCompletionDeliveredAndSlotRecycled(t *testing.T) {
	t.Parallel()

	c, _ := newTestCore(t)

	var (
		mu     sync.Mutex
		slots  []int
		status []playback.SlotStatus
	)
	c.OnPlaybackFinished(func(slot int, st playback.SlotStatus) {
		mu.Lock()
		slots = append(slots, slot)
		status = append(status, st)
		mu.Unlock()
	})

	sched := playback.NewSchedule().AddNote(0, 5, 0, 60, 100)
	require.NoError(t, sched.Finalize())

	id, err := c.Playback.Start(sched)
	require.NoError(t, err)

	require.Equal(t, playback.StatusComplete, c.Playback.Wait(id, time.Second))

	// The completion callback is queued; delivering it recycles the slot.
	c.Tick()

	mu.Lock()
	require.Equal(t, []int{id}, slots)
	require.Equal(t, []playback.SlotStatus{playback.StatusComplete}, status)
	mu.Unlock()

	assert.Equal(t, playback.StatusIdle, c.Playback.Status(id))
}

func TestCallbackHandlerIsReserved(t *testing.T) {
	t.Parallel()

	c, _ := newTestCore(t)

	// The internal completion handler must not be replaceable.
	c.SetHandler(events.KindCallback, func(ev *events.Event, _ any) {})

	sched := playback.NewSchedule().AddNote(0, 2, 0, 60, 100)
	require.NoError(t, sched.Finalize())

	id, err := c.Playback.Start(sched)
	require.NoError(t, err)
	require.Equal(t, playback.StatusComplete, c.Playback.Wait(id, time.Second))

	c.Tick()
	assert.Equal(t, playback.StatusIdle, c.Playback.Status(id), "slot recycled by internal handler")
}

func TestDroppedCompletionStillRecyclesSlot(t *testing.T) {
	t.Parallel()

	settings := defaultTestSettings()
	settings.Queue.Capacity = 2 // one usable slot
	settings.Playback.Slots = 1
	session := &stubSession{tempo: settings.Tempo.BPM}

	c, err := New(settings,
		WithSession(session),
		WithBackends(&nullBackend{name: "null"}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	// Fill the queue so the completion notification is refused.
	require.NoError(t, c.Queue.PushTimer(1))

	sched := playback.NewSchedule().AddNote(0, 2, 0, 60, 100)
	require.NoError(t, sched.Finalize())

	id, err := c.Playback.Start(sched)
	require.NoError(t, err)

	// The callback is lost, but the slot is recycled regardless; by the
	// time the worker is done the pool is whole again.
	require.Equal(t, playback.StatusIdle, c.Playback.Wait(id, time.Second))

	id2, err := c.Playback.Start(sched)
	require.NoError(t, err)
	require.Equal(t, playback.StatusIdle, c.Playback.Wait(id2, time.Second))
}

func TestRunHonorsContext(t *testing.T) {
	t.Parallel()

	c, _ := newTestCore(t)

	// Handlers are registered before the loop starts.
	seen := make(chan int, 1)
	c.SetHandler(events.KindTimer, func(ev *events.Event, _ any) {
		select {
		case seen <- ev.TimerID:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// The loop must be responsive to queued events while running.
	require.NoError(t, c.Queue.PushTimer(7))

	select {
	case id := <-seen:
		assert.Equal(t, 7, id)
	case <-time.After(time.Second):
		t.Fatal("event not dispatched while running")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
