package export

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livecore-audio/livecore/internal/playback"
)

type countingSink struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSink) bump() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingSink) NoteOn(channel, note, velocity uint8)              { c.bump() }
func (c *countingSink) NoteOnFreq(channel uint8, f float64, v uint8)      { c.bump() }
func (c *countingSink) NoteOff(channel, note uint8)                       { c.bump() }
func (c *countingSink) ControlChange(channel, controller, value uint8)    { c.bump() }
func (c *countingSink) ProgramChange(channel, program uint8)              { c.bump() }

func TestForwardsWhileDisarmed(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	r := New(sink)

	r.NoteOn(0, 60, 100)
	r.NoteOff(0, 60)

	assert.Equal(t, 2, sink.count())
	assert.Zero(t, r.Len(), "disarmed recorder captures nothing")
	assert.Nil(t, r.Take())
}

func TestCapturesWhileArmed(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	r := New(sink)

	r.Arm()
	assert.True(t, r.IsArmed())

	r.NoteOn(0, 60, 100)
	time.Sleep(10 * time.Millisecond)
	r.NoteOff(0, 60)
	r.ControlChange(0, 7, 64)
	r.Disarm()

	// Events after disarm pass through but are not captured.
	r.NoteOn(0, 64, 100)

	assert.Equal(t, 4, sink.count())
	assert.Equal(t, 3, r.Len())

	take := r.Take()
	require.NotNil(t, take)
	evs := take.Events()
	require.Len(t, evs, 3)

	assert.Equal(t, playback.EventNoteOn, evs[0].Type)
	assert.Zero(t, evs[0].TimeMS)
	assert.GreaterOrEqual(t, evs[1].TimeMS, int64(10), "off captured with elapsed time")
}

func TestArmDiscardsPreviousTake(t *testing.T) {
	t.Parallel()

	r := New(&countingSink{})

	r.Arm()
	r.NoteOn(0, 60, 100)
	r.Disarm()
	require.Equal(t, 1, r.Len())

	r.Arm()
	assert.Zero(t, r.Len())
}

func TestTakeIsReplayable(t *testing.T) {
	t.Parallel()

	r := New(&countingSink{})
	r.Arm()
	r.NoteOn(0, 60, 100)
	r.NoteOff(0, 60)
	r.Disarm()

	take := r.Take()
	require.NotNil(t, take)

	// The take is a finalized schedule: the playback manager accepts it.
	replay := &countingSink{}
	m := playback.NewManager(1, replay)
	defer m.Close()

	id, err := m.Start(take)
	require.NoError(t, err)
	assert.Equal(t, playback.StatusComplete, m.Wait(id, time.Second))
	assert.Equal(t, 2, replay.count())
}
