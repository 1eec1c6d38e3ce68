package liveloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBeatSource struct {
	enabled bool
	beat    float64
}

func (f *fakeBeatSource) IsEnabled() bool              { return f.enabled }
func (f *fakeBeatSource) Beat(quantum float64) float64 { return f.beat }

type triggerRecorder struct {
	resources []int
	beats     []float64
}

func (r *triggerRecorder) record(resource int, beat, interval float64) {
	r.resources = append(r.resources, resource)
	r.beats = append(r.beats, beat)
}

func TestTickFiresOnBoundaryCrossing(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: true}
	rec := &triggerRecorder{}
	s := New(src, rec.record)

	s.Start(1, 4)

	// Samples straddling two boundaries of a 4-beat loop.
	for _, beat := range []float64{0.0, 3.9, 4.1, 7.9, 8.1} {
		src.beat = beat
		s.Tick()
	}

	require.Len(t, rec.beats, 2)
	assert.Equal(t, []float64{4.1, 8.1}, rec.beats)
	assert.Equal(t, []int{1, 1}, rec.resources)
}

func TestTickNoOpWhenDisabled(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: false}
	rec := &triggerRecorder{}
	s := New(src, rec.record)

	s.Start(1, 1)
	src.beat = 10
	assert.Zero(t, s.Tick())
	assert.Empty(t, rec.beats)
}

func TestJumpAcrossManyBoundariesFiresOnce(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: true}
	rec := &triggerRecorder{}
	s := New(src, rec.record)

	s.Start(7, 4)

	// A long stall: the beat leaps over five boundaries. The loop fires
	// once at the current position; missed cycles are not replayed.
	src.beat = 0.5
	s.Tick()
	src.beat = 21.0
	assert.Equal(t, 1, s.Tick())
	assert.Equal(t, []float64{21.0}, rec.beats)
}

func TestMultipleIntervals(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: true}
	counts := map[int]int{}
	s := New(src, func(resource int, beat, interval float64) { counts[resource]++ })

	s.Start(1, 1)
	s.Start(2, 2)
	s.Start(4, 4)

	// Step in quarter beats through one 4-beat cycle.
	for b := 0.25; b <= 4.25; b += 0.25 {
		src.beat = b
		s.Tick()
	}

	assert.Equal(t, 4, counts[1])
	assert.Equal(t, 2, counts[2])
	assert.Equal(t, 1, counts[4])
}

func TestStartUpdatesIntervalAndResetsReference(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: true}
	rec := &triggerRecorder{}
	s := New(src, rec.record)

	s.Start(1, 4)
	require.Equal(t, 1, s.Len())

	// Restarting with a new interval keeps a single entry and anchors the
	// reference beat at now, so the next trigger is a full interval away.
	src.beat = 9.5
	s.Start(1, 2)
	require.Equal(t, 1, s.Len())

	src.beat = 9.9
	s.Tick()
	assert.Empty(t, rec.beats, "still inside the current cycle")

	src.beat = 10.1
	s.Tick()
	assert.Equal(t, []float64{10.1}, rec.beats)
}

func TestStopRemovesLoop(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: true}
	rec := &triggerRecorder{}
	s := New(src, rec.record)

	s.Start(1, 1)
	s.Start(2, 1)
	require.True(t, s.IsActive(1))
	require.Equal(t, 2, s.Len())

	require.NoError(t, s.Stop(1))
	assert.False(t, s.IsActive(1))
	assert.Equal(t, 1, s.Len())

	src.beat = 1.5
	s.Tick()
	assert.Equal(t, []int{2}, rec.resources, "stopped resource must not fire")

	assert.Error(t, s.Stop(1), "double stop reports an error")
	require.NoError(t, s.Stop(2))
	assert.Zero(t, s.Len())
}

func TestDefaultInterval(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: true}
	rec := &triggerRecorder{}
	s := New(src, rec.record)

	s.Start(1, 0)
	src.beat = DefaultInterval + 0.1
	s.Tick()
	assert.Len(t, rec.beats, 1)
}

func TestIntervalLookup(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: true}
	s := New(src, nil)

	s.Start(1, 8)
	assert.Equal(t, 8.0, s.Interval(1))
	assert.Zero(t, s.Interval(2))
}

func TestLivenessProbeRemovesVanishedResources(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: true}
	rec := &triggerRecorder{}
	s := New(src, rec.record)

	alive := map[int]bool{1: true, 2: true, 3: true}
	s.SetLiveness(func(resource int) bool { return alive[resource] })

	s.Start(1, 1)
	s.Start(2, 1)
	s.Start(3, 1)

	// Resource 2 disappears between ticks; its entry is dropped before it
	// can fire, the survivors still fire.
	delete(alive, 2)
	src.beat = 1.5
	assert.Equal(t, 2, s.Tick())
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.IsActive(2))
	assert.ElementsMatch(t, []int{1, 3}, rec.resources)
}

func TestNilTriggerStillAdvances(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: true}
	s := New(src, nil)

	s.Start(1, 1)
	src.beat = 1.5
	assert.NotPanics(t, func() {
		assert.Equal(t, 1, s.Tick())
	})
}

func TestTriggerMayReenterScheduler(t *testing.T) {
	t.Parallel()

	src := &fakeBeatSource{enabled: true}

	// A trigger that mutates the scheduler it fires from. Triggers run
	// after the lock drops, so this must not deadlock.
	var s *Scheduler
	s = New(src, func(resource int, beat, interval float64) {
		require.NoError(t, s.Stop(resource))
		s.Start(resource+1, 1)
	})

	s.Start(1, 1)
	src.beat = 1.5
	assert.Equal(t, 1, s.Tick())
	assert.False(t, s.IsActive(1))
	assert.True(t, s.IsActive(2))
}
