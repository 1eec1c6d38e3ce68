// Package events implements the multi-producer single-consumer event queue
// at the center of the livecore runtime. Producer threads (the tempo sync
// session's network thread, playback workers) push tagged events; the single
// consumer loop drains them once per tick through a handler table.
package events

import (
	"sync"
	"time"
)

// Kind discriminates the event payload.
type Kind uint8

const (
	KindNone Kind = iota
	KindCallback
	KindPeers
	KindTempo
	KindTransport
	KindTimer
	KindBeat
	KindCustom

	numKinds
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCallback:
		return "callback"
	case KindPeers:
		return "peers"
	case KindTempo:
		return "tempo"
	case KindTransport:
		return "transport"
	case KindTimer:
		return "timer"
	case KindBeat:
		return "beat"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// MaxTagLen bounds the tag of custom events. Longer tags are truncated.
const MaxTagLen = 32

// Event is a tagged event carried through the queue. Only the payload
// fields matching Kind are meaningful. An event may own a heap buffer
// (custom events); ownership moves into the queue on push and to the
// consumer on poll, and Release must run exactly once.
type Event struct {
	Kind      Kind
	Flags     uint32
	Timestamp int64 // monotonic nanoseconds, stamped at push if zero

	// Tempo sync payloads
	Tempo   float64 // KindTempo
	Peers   uint64  // KindPeers
	Playing bool    // KindTransport

	// Beat boundary payload
	Beat     float64 // KindBeat
	Quantum  float64 // KindBeat
	Resource int     // KindBeat: owning resource id

	// Playback completion payload
	Slot   int // KindCallback
	Status int // KindCallback

	// Timer payload
	TimerID int // KindTimer

	// Custom payload
	Tag  string // KindCustom
	Data []byte // KindCustom: owned buffer

	release func()
}

// Release frees the event's owned resources. Safe to call more than once;
// only the first call has effect.
func (e *Event) Release() {
	if e.release != nil {
		f := e.release
		e.release = nil
		f()
	}
	e.Data = nil
}

// processEpoch anchors the monotonic timestamp domain. time.Since reads the
// runtime's monotonic clock, so timestamps are immune to wall clock jumps.
var processEpoch = time.Now()

func nowNanos() int64 {
	return time.Since(processEpoch).Nanoseconds()
}

// customPool recycles payload buffers for custom events so the push path
// does not allocate on every event.
var customPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 512)
		return &b
	},
}
