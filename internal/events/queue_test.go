package events

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livecore-audio/livecore/internal/errors"
	"github.com/livecore-audio/livecore/internal/observability/metrics"
)

func newTestQueue(t *testing.T, capacity int) *Queue {
	t.Helper()
	q, err := NewQueue(capacity)
	require.NoError(t, err)
	return q
}

func TestNewQueueRejectsBadCapacity(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{1, 3, 100, -4} {
		_, err := NewQueue(capacity)
		assert.Error(t, err, "capacity %d", capacity)
	}

	q, err := NewQueue(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, q.Capacity())
}

func TestCapacityInvariant(t *testing.T) {
	t.Parallel()

	const capacity = 16
	q := newTestQueue(t, capacity)

	// One slot is reserved to distinguish full from empty.
	for i := 0; i < capacity-1; i++ {
		require.NoError(t, q.PushTimer(i), "push %d", i)
	}

	err := q.PushTimer(capacity)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQueueFull))
	assert.Equal(t, capacity-1, q.Count())
}

func TestFIFOOrdering(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 16)

	require.NoError(t, q.PushTimer(1))
	require.NoError(t, q.PushTimer(2))
	require.NoError(t, q.PushTimer(3))

	for _, want := range []int{1, 2, 3} {
		ev, ok := q.Poll()
		require.True(t, ok)
		assert.Equal(t, KindTimer, ev.Kind)
		assert.Equal(t, want, ev.TimerID)
	}

	_, ok := q.Poll()
	assert.False(t, ok)
}

func TestTimestampStampedOnPush(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 16)

	require.NoError(t, q.Push(&Event{Kind: KindTimer}))
	require.NoError(t, q.Push(&Event{Kind: KindTimer, Timestamp: 42}))

	ev, ok := q.Poll()
	require.True(t, ok)
	assert.Positive(t, ev.Timestamp, "unset timestamp should be stamped")

	ev, ok = q.Poll()
	require.True(t, ok)
	assert.Equal(t, int64(42), ev.Timestamp, "preset timestamp should be preserved")
}

func TestPeekDoesNotRemove(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 16)
	require.NoError(t, q.PushTimer(7))

	ev := q.Peek()
	require.NotNil(t, ev)
	assert.Equal(t, 7, ev.TimerID)
	assert.Equal(t, 1, q.Count())

	q.Pop()
	assert.Nil(t, q.Peek())
	assert.True(t, q.IsEmpty())
}

func TestDispatchAllAtMostOnce(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 32)

	var timerCalls, beatCalls int
	q.SetHandler(KindTimer, func(ev *Event, ctx any) { timerCalls++ })
	q.SetHandler(KindBeat, func(ev *Event, ctx any) { beatCalls++ })

	require.NoError(t, q.PushTimer(1))
	require.NoError(t, q.PushBeat(4.0, 4.0, 1))
	require.NoError(t, q.PushTimer(2))
	// Unhandled kind still counts and drains.
	require.NoError(t, q.PushPeers(3))

	n := q.DispatchAll(nil)
	assert.Equal(t, 4, n)
	assert.Equal(t, 2, timerCalls)
	assert.Equal(t, 1, beatCalls)
	assert.True(t, q.IsEmpty())

	assert.Zero(t, q.DispatchAll(nil))
}

func TestDispatchPassesContext(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 16)

	type dispatchCtx struct{ seen int }
	q.SetHandler(KindTimer, func(ev *Event, ctx any) {
		ctx.(*dispatchCtx).seen = ev.TimerID
	})

	require.NoError(t, q.PushTimer(99))

	dc := &dispatchCtx{}
	q.DispatchAll(dc)
	assert.Equal(t, 99, dc.seen)
}

func TestDispatchContainsHandlerPanic(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 16)
	q.SetHandler(KindTimer, func(ev *Event, ctx any) { panic("handler bug") })

	require.NoError(t, q.PushTimer(1))
	require.NoError(t, q.PushTimer(2))

	assert.NotPanics(t, func() {
		n := q.DispatchAll(nil)
		assert.Equal(t, 2, n)
	})
	assert.True(t, q.IsEmpty())
}

func TestCustomEventOwnsCopy(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 16)

	payload := []byte("pattern-a")
	require.NoError(t, q.PushCustom("reload", payload))

	// Mutating the caller's slice must not affect the queued copy.
	payload[0] = 'X'

	ev, ok := q.Poll()
	require.True(t, ok)
	assert.Equal(t, "reload", ev.Tag)
	assert.Equal(t, []byte("pattern-a"), ev.Data)

	ev.Release()
	assert.Nil(t, ev.Data)
	// Second release is a no-op.
	ev.Release()
}

func TestPushCustomFullQueueReleasesBuffer(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 4)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.PushTimer(i))
	}

	err := q.PushCustom("overflow", []byte("data"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQueueFull))
}

func TestCustomTagTruncated(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 16)
	long := "a-tag-name-well-beyond-the-thirty-two-byte-limit"
	require.NoError(t, q.PushCustom(long, nil))

	ev, ok := q.Poll()
	require.True(t, ok)
	assert.Len(t, ev.Tag, MaxTagLen)
}

func TestWakeSignaledOnPush(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 16)

	select {
	case <-q.Wake():
		t.Fatal("wake should start unsignaled")
	default:
	}

	require.NoError(t, q.PushTimer(1))

	select {
	case <-q.Wake():
	default:
		t.Fatal("wake not signaled after push")
	}

	// The signal is level-like: many pushes collapse into one wake and the
	// producer never blocks on it.
	for i := 0; i < 10; i++ {
		require.NoError(t, q.PushTimer(i))
	}
}

func TestDrainReleasesEverything(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 16)

	released := 0
	for i := 0; i < 5; i++ {
		ev := Event{Kind: KindCustom, Tag: "t"}
		ev.release = func() { released++ }
		require.NoError(t, q.Push(&ev))
	}

	q.Drain()
	assert.Equal(t, 5, released)
	assert.True(t, q.IsEmpty())

	// Safe on empty queue.
	q.Drain()
	assert.Equal(t, 5, released)
}

func TestConcurrentPushStress(t *testing.T) {
	t.Parallel()

	const (
		producers = 8
		perThread = 100
	)

	q := newTestQueue(t, 1024)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				// Unique sequence payload per event.
				err := q.PushTimer(p*perThread + i)
				assert.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()

	require.Equal(t, producers*perThread, q.Count())

	seen := make(map[int]bool, producers*perThread)
	lastPerProducer := make(map[int]int)
	for {
		ev, ok := q.Poll()
		if !ok {
			break
		}
		require.False(t, seen[ev.TimerID], "duplicate event %d", ev.TimerID)
		seen[ev.TimerID] = true

		// FIFO per producer: sequence numbers from one producer ascend.
		p := ev.TimerID / perThread
		if last, ok := lastPerProducer[p]; ok {
			assert.Greater(t, ev.TimerID, last)
		}
		lastPerProducer[p] = ev.TimerID
	}

	assert.Len(t, seen, producers*perThread)
}

func TestPushRecordsMetrics(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 2) // one usable slot

	reg := prometheus.NewRegistry()
	m, err := metrics.NewEventsMetrics(reg)
	require.NoError(t, err)
	q.SetMetrics(m)

	require.NoError(t, q.PushTimer(1))
	require.ErrorIs(t, q.PushTimer(2), errors.ErrQueueFull)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Pushed.WithLabelValues(KindTimer.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped))
}
