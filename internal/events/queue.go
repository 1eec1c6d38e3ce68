package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/livecore-audio/livecore/internal/errors"
	"github.com/livecore-audio/livecore/internal/logging"
	"github.com/livecore-audio/livecore/internal/observability/metrics"
)

// DefaultCapacity is the queue size used when the config does not override it.
const DefaultCapacity = 256

// Handler processes one dispatched event. The dispatch context is whatever
// the consumer loop passed to DispatchAll.
type Handler func(ev *Event, ctx any)

// Queue is a fixed-capacity ring buffer of events. Push is safe from any
// goroutine; Poll, Peek, Pop, DispatchAll and Drain must only run on the
// single designated consumer goroutine. That contract is documented, not
// enforced at runtime.
//
// One slot is reserved so a full queue is distinguishable from an empty one:
// (tail+1)&mask == head means full.
type Queue struct {
	mu     sync.Mutex // serializes producers
	events []Event
	mask   uint32
	head   atomic.Uint32 // next slot to consume
	tail   atomic.Uint32 // next free slot

	wake     chan struct{}
	handlers [numKinds]Handler
	clock    func() int64
	logger   *slog.Logger
	metrics  *metrics.EventsMetrics
}

// NewQueue creates a queue with the given capacity, which must be a power
// of two. Pass 0 for the default.
func NewQueue(capacity int) (*Queue, error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 2 || capacity&(capacity-1) != 0 {
		return nil, errors.Newf("queue capacity must be a power of two").
			Category(errors.CategoryValidation).
			Context("capacity", capacity).
			Build()
	}

	return &Queue{
		events: make([]Event, capacity),
		mask:   uint32(capacity - 1),
		wake:   make(chan struct{}, 1),
		clock:  nowNanos,
		logger: logging.ForService("events"),
	}, nil
}

// SetMetrics attaches queue metrics, counting pushes and drops at the
// source. Optional.
func (q *Queue) SetMetrics(m *metrics.EventsMetrics) {
	q.mu.Lock()
	q.metrics = m
	q.mu.Unlock()
}

// Capacity returns the ring size. Usable capacity is one less.
func (q *Queue) Capacity() int {
	return len(q.events)
}

// Wake returns the channel a consumer blocks on between ticks. Producers
// signal it after every push, so a waiting consumer resumes promptly.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

func (q *Queue) signalWake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Push copies ev into the queue, stamping its timestamp if unset, and wakes
// the consumer. Ownership of any payload buffer moves into the queue.
// Returns ErrQueueFull without taking ownership if no slot is free; the
// caller decides whether to drop, retry or log.
func (q *Queue) Push(ev *Event) error {
	q.mu.Lock()

	tail := q.tail.Load()
	next := (tail + 1) & q.mask

	m := q.metrics

	if next == q.head.Load() {
		q.mu.Unlock()
		if m != nil {
			m.RecordDrop()
		}
		return errors.ErrQueueFull
	}

	q.events[tail] = *ev
	if q.events[tail].Timestamp == 0 {
		q.events[tail].Timestamp = q.clock()
	}

	q.tail.Store(next)
	q.mu.Unlock()

	if m != nil {
		m.RecordPush(ev.Kind.String())
	}
	q.signalWake()
	return nil
}

// Poll removes and returns the event at the head, or false if the queue is
// empty. Ownership of the event's resources transfers to the caller.
// Consumer-only.
func (q *Queue) Poll() (Event, bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return Event{}, false
	}

	ev := q.events[head]
	// Ownership moved out; drop the queue's references.
	q.events[head].release = nil
	q.events[head].Data = nil

	q.head.Store((head + 1) & q.mask)
	return ev, true
}

// Peek returns the event at the head without removing it, or nil if empty.
// The pointer is only valid until the next Poll or Pop. Consumer-only.
func (q *Queue) Peek() *Event {
	head := q.head.Load()
	if head == q.tail.Load() {
		return nil
	}
	return &q.events[head]
}

// Pop discards the event at the head, releasing its owned resources.
// Consumer-only.
func (q *Queue) Pop() {
	head := q.head.Load()
	if head == q.tail.Load() {
		return
	}

	q.events[head].Release()
	q.head.Store((head + 1) & q.mask)
}

// IsEmpty reports whether the queue holds no events.
func (q *Queue) IsEmpty() bool {
	return q.head.Load() == q.tail.Load()
}

// Count returns the number of queued events.
func (q *Queue) Count() int {
	return int((q.tail.Load() - q.head.Load()) & q.mask)
}

// SetHandler registers the handler for an event kind, replacing any
// previous one. A nil handler makes the kind a no-op. Consumer-only.
func (q *Queue) SetHandler(kind Kind, h Handler) {
	if kind <= KindNone || kind >= numKinds {
		return
	}
	q.handlers[kind] = h
}

// Handler returns the registered handler for a kind, or nil.
func (q *Queue) Handler(kind Kind) Handler {
	if kind <= KindNone || kind >= numKinds {
		return nil
	}
	return q.handlers[kind]
}

// DispatchAll drains the queue, invoking the registered handler for each
// event and releasing the event's resources afterwards. Events without a
// handler are counted and released but otherwise ignored. Returns the
// number of events processed. Consumer-only; this is the single integration
// point the consumer loop calls once per tick.
func (q *Queue) DispatchAll(ctx any) int {
	count := 0
	for {
		ev, ok := q.Poll()
		if !ok {
			break
		}

		if h := q.Handler(ev.Kind); h != nil {
			q.invoke(h, &ev, ctx)
		}
		ev.Release()
		count++
	}
	return count
}

// invoke runs a handler, containing panics so one misbehaving handler
// cannot take down the consumer loop.
func (q *Queue) invoke(h Handler, ev *Event, ctx any) {
	defer func() {
		if r := recover(); r != nil {
			if q.logger != nil {
				q.logger.Error("event handler panicked",
					"kind", ev.Kind.String(),
					"panic", r,
				)
			}
		}
	}()
	h(ev, ctx)
}

// Drain discards all queued events, releasing each one's resources exactly
// once. Safe on an empty queue. Consumer-only; used at teardown.
func (q *Queue) Drain() {
	for {
		ev, ok := q.Poll()
		if !ok {
			return
		}
		ev.Release()
	}
}
