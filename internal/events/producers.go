package events

// Typed producer helpers. These are the only push paths the rest of the
// runtime uses; each builds a fully-populated event and forwards to Push.
// All are safe from any goroutine.

// PushTempo enqueues a tempo change notification.
func (q *Queue) PushTempo(bpm float64) error {
	return q.Push(&Event{
		Kind:  KindTempo,
		Tempo: bpm,
	})
}

// PushPeers enqueues a peer count change notification.
func (q *Queue) PushPeers(peers uint64) error {
	return q.Push(&Event{
		Kind:  KindPeers,
		Peers: peers,
	})
}

// PushTransport enqueues a transport start/stop notification.
func (q *Queue) PushTransport(playing bool) error {
	return q.Push(&Event{
		Kind:    KindTransport,
		Playing: playing,
	})
}

// PushBeat enqueues a beat boundary crossing for a looping resource.
func (q *Queue) PushBeat(beat, quantum float64, resource int) error {
	return q.Push(&Event{
		Kind:     KindBeat,
		Beat:     beat,
		Quantum:  quantum,
		Resource: resource,
	})
}

// PushTimer enqueues a timer expiry.
func (q *Queue) PushTimer(timerID int) error {
	return q.Push(&Event{
		Kind:    KindTimer,
		TimerID: timerID,
	})
}

// PushCallback enqueues a playback completion carrying the slot id and its
// final status, for delivery to the script layer.
func (q *Queue) PushCallback(slot, status int) error {
	return q.Push(&Event{
		Kind:   KindCallback,
		Slot:   slot,
		Status: status,
	})
}

// PushCustom enqueues a tagged opaque payload. The data is copied into a
// pooled buffer owned by the event; if the push is rejected the buffer is
// returned to the pool before the error surfaces, so a failed push never
// leaks the copy. Tags longer than MaxTagLen are truncated.
func (q *Queue) PushCustom(tag string, data []byte) error {
	if len(tag) > MaxTagLen {
		tag = tag[:MaxTagLen]
	}

	ev := Event{
		Kind: KindCustom,
		Tag:  tag,
	}

	if len(data) > 0 {
		bufp := customPool.Get().(*[]byte)
		buf := append((*bufp)[:0], data...)
		*bufp = buf
		ev.Data = buf
		ev.release = func() {
			*bufp = buf[:0]
			customPool.Put(bufp)
		}
	}

	if err := q.Push(&ev); err != nil {
		ev.Release()
		return err
	}
	return nil
}
