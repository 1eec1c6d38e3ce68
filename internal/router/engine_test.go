package router

import (
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livecore-audio/livecore/internal/errors"
)

// fakeOSCSender records the addresses of sent messages and can be made
// to fail.
type fakeOSCSender struct {
	sent []string
	err  error
}

func (f *fakeOSCSender) Send(packet osc.Packet) error {
	if f.err != nil {
		return f.err
	}
	if msg, ok := packet.(*osc.Message); ok {
		f.sent = append(f.sent, msg.Address)
	}
	return nil
}

func (f *fakeOSCSender) pings() int {
	n := 0
	for _, addr := range f.sent {
		if addr == oscPing {
			n++
		}
	}
	return n
}

// newTestEngine builds an engine over a fake sender with a controllable
// clock. Advance the clock by assigning through the returned pointer.
func newTestEngine(sender oscSender) (*EngineBackend, *time.Time) {
	clock := time.Now()
	e := &EngineBackend{client: sender, enabled: true}
	e.now = func() time.Time { return clock }
	return e, &clock
}

func TestEngineAvailabilityWindow(t *testing.T) {
	t.Parallel()

	sender := &fakeOSCSender{}
	e, clock := newTestEngine(sender)

	assert.True(t, e.Available(), "never contacted yet")

	require.NoError(t, e.NoteOn(0, 60, 100))
	assert.True(t, e.Available())

	*clock = clock.Add(engineAvailabilityWindow + time.Second)
	assert.False(t, e.Available(), "window elapsed without a send")
}

func TestKeepAliveKeepsIdleEngineAvailable(t *testing.T) {
	t.Parallel()

	sender := &fakeOSCSender{}
	e, clock := newTestEngine(sender)

	require.NoError(t, e.NoteOn(0, 60, 100))

	// A long silent stretch in the set. Periodic keepalives refresh the
	// window, so the engine never loses its spot at the top of the
	// priority order.
	for i := 0; i < 6; i++ {
		*clock = clock.Add(enginePingInterval)
		e.KeepAlive()
		assert.True(t, e.Available(), "after %d keepalives", i+1)
	}
	assert.Equal(t, 6, sender.pings())
}

func TestKeepAliveRestoresExpiredEngine(t *testing.T) {
	t.Parallel()

	sender := &fakeOSCSender{}
	e, clock := newTestEngine(sender)

	require.NoError(t, e.NoteOn(0, 60, 100))

	*clock = clock.Add(engineAvailabilityWindow + time.Minute)
	require.False(t, e.Available())

	e.KeepAlive()
	assert.True(t, e.Available(), "successful ping re-enters the window")
}

func TestKeepAliveRecoversAfterSendFailure(t *testing.T) {
	t.Parallel()

	sender := &fakeOSCSender{}
	e, clock := newTestEngine(sender)

	sender.err = errors.NewStd("connection refused")
	require.Error(t, e.NoteOn(0, 60, 100))
	require.False(t, e.Available())

	// The engine comes back; the next keepalive probe notices.
	sender.err = nil
	*clock = clock.Add(enginePingInterval)
	e.KeepAlive()
	assert.True(t, e.Available())
}

func TestKeepAliveIsPaced(t *testing.T) {
	t.Parallel()

	sender := &fakeOSCSender{}
	e, clock := newTestEngine(sender)

	e.KeepAlive()
	e.KeepAlive()
	assert.Equal(t, 1, sender.pings(), "second probe inside the interval is skipped")

	*clock = clock.Add(enginePingInterval)
	e.KeepAlive()
	assert.Equal(t, 2, sender.pings())
}

func TestKeepAliveNoOpWhenDisabled(t *testing.T) {
	t.Parallel()

	sender := &fakeOSCSender{}
	e, _ := newTestEngine(sender)

	e.SetEnabled(false)
	e.KeepAlive()
	assert.Empty(t, sender.sent)
}
