package log

import "sync"

// Recorder keeps the most recent events in memory.
type Recorder struct {
	mu     sync.Mutex
	size   int
	events []Event
	next   int
	full   bool
}

// NewRecorder returns a Recorder holding up to size events. A size of zero
// or less keeps everything.
func NewRecorder(size int) *Recorder {
	if size < 0 {
		size = 0
	}
	return &Recorder{size: size}
}

// Log stores the event, evicting the oldest one when the ring is full.
func (r *Recorder) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 || len(r.events) < r.size {
		r.events = append(r.events, event)
		return
	}
	r.events[r.next] = event
	r.next = (r.next + 1) % r.size
	r.full = true
}

// Events returns the stored events, oldest first.
func (r *Recorder) Events() []Event {
	return r.Match(Filter{})
}

// Match returns the stored events accepted by filter, oldest first.
func (r *Recorder) Match(filter Filter) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := r.events
	if r.full {
		ordered = append(append([]Event(nil), r.events[r.next:]...), r.events[:r.next]...)
	}
	var out []Event
	for _, e := range ordered {
		if filter.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops every stored event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = r.events[:0]
	r.next = 0
	r.full = false
}
