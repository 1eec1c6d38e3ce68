// Package liveloop schedules beat-aligned re-triggering of resources. Each
// resource (an editing buffer, in practice) names a beat interval; once per
// consumer tick the scheduler samples the session beat and enqueues one
// trigger for every resource whose interval boundary was crossed since the
// previous sample. Triggers are edge detected, so a resource fires at most
// once per tick no matter how long the tick took.
package liveloop

import (
	"math"
	"sync"

	"github.com/livecore-audio/livecore/internal/errors"
	"github.com/livecore-audio/livecore/internal/observability/metrics"
)

// DefaultInterval is the loop interval used when a caller starts a loop
// with a zero or negative one.
const DefaultInterval = 4.0

// BeatSource supplies the current session beat. Satisfied by the tempo
// sync layer.
type BeatSource interface {
	IsEnabled() bool
	Beat(quantum float64) float64
}

// TriggerFunc receives a boundary crossing. The runtime wires it to a beat
// event push, so the actual re-trigger work happens during dispatch, never
// inside Tick itself.
type TriggerFunc func(resource int, beat, interval float64)

type entry struct {
	resource int
	interval float64
	lastBeat float64
}

// Scheduler tracks the active loops. Tick runs on the consumer loop; the
// mutex exists for status readers on other goroutines.
type Scheduler struct {
	mu      sync.Mutex
	entries []entry

	source   BeatSource
	trigger  TriggerFunc
	liveness func(resource int) bool
	metrics  *metrics.LiveLoopMetrics
}

// New creates a scheduler over the given beat source, delivering crossings
// to trigger.
func New(source BeatSource, trigger TriggerFunc) *Scheduler {
	return &Scheduler{
		source:  source,
		trigger: trigger,
	}
}

// SetMetrics attaches loop metrics. Optional.
func (s *Scheduler) SetMetrics(m *metrics.LiveLoopMetrics) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

// SetLiveness registers a probe for whether a resource still exists. When
// set, Tick drops entries whose resource has vanished instead of leaving
// them firing into the void.
func (s *Scheduler) SetLiveness(fn func(resource int) bool) {
	s.mu.Lock()
	s.liveness = fn
	s.mu.Unlock()
}

// Start registers the resource for re-triggering every interval beats, or
// updates the interval of an already-active loop. Updating also resets the
// reference beat to now, so the next trigger is one full interval away
// rather than derived from the old interval's position. A resource has at
// most one loop.
func (s *Scheduler) Start(resource int, interval float64) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	beat := 0.0
	if s.source != nil && s.source.IsEnabled() {
		beat = s.source.Beat(interval)
	}

	for i := range s.entries {
		if s.entries[i].resource == resource {
			s.entries[i].interval = interval
			s.entries[i].lastBeat = beat
			return
		}
	}

	s.entries = append(s.entries, entry{
		resource: resource,
		interval: interval,
		lastBeat: beat,
	})

	if s.metrics != nil {
		s.metrics.UpdateActiveLoops(len(s.entries))
	}
}

// Stop removes the resource's loop. Stopping an inactive resource returns
// an error but has no other effect.
func (s *Scheduler) Stop(resource int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].resource == resource {
			// Order does not matter; swap with the last entry.
			last := len(s.entries) - 1
			s.entries[i] = s.entries[last]
			s.entries = s.entries[:last]
			if s.metrics != nil {
				s.metrics.UpdateActiveLoops(len(s.entries))
			}
			return nil
		}
	}

	return errors.Newf("no loop for resource").
		Category(errors.CategoryLiveLoop).
		Context("resource", resource).
		Build()
}

// IsActive reports whether the resource has a loop.
func (s *Scheduler) IsActive(resource int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].resource == resource {
			return true
		}
	}
	return false
}

// Interval returns the resource's loop interval in beats, or 0 when the
// resource has no loop.
func (s *Scheduler) Interval(resource int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].resource == resource {
			return s.entries[i].interval
		}
	}
	return 0
}

// Len returns the number of active loops.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// crossing records one boundary hit for delivery after the lock drops.
type crossing struct {
	resource int
	beat     float64
	interval float64
}

// Tick samples the beat and delivers one trigger for every loop that
// crossed an interval boundary since its previous sample. A stalled or
// restarted transport that jumps several boundaries in one tick still
// fires each loop once; the missed cycles are skipped, not replayed.
// Triggers run after the scheduler lock is released, so a trigger may
// call back into Start or Stop. No-op while tempo sync is disabled.
// Returns the number of triggers delivered.
func (s *Scheduler) Tick() int {
	s.mu.Lock()

	if s.source == nil || !s.source.IsEnabled() {
		s.mu.Unlock()
		return 0
	}

	var fired []crossing
	for i := 0; i < len(s.entries); i++ {
		e := &s.entries[i]

		if s.liveness != nil && !s.liveness(e.resource) {
			last := len(s.entries) - 1
			s.entries[i] = s.entries[last]
			s.entries = s.entries[:last]
			i--
			continue
		}

		beat := s.source.Beat(e.interval)
		prevCycle := int64(math.Floor(e.lastBeat / e.interval))
		curCycle := int64(math.Floor(beat / e.interval))
		e.lastBeat = beat

		if curCycle <= prevCycle {
			continue
		}

		fired = append(fired, crossing{e.resource, beat, e.interval})
		if s.metrics != nil {
			s.metrics.RecordTrigger()
		}
	}
	trigger := s.trigger
	s.mu.Unlock()

	if trigger != nil {
		for _, c := range fired {
			trigger(c.resource, c.beat, c.interval)
		}
	}
	return len(fired)
}
