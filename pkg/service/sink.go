package service

import "github.com/smartrelay/relay-go/pkg/wire"

// Sink receives notifications. Notify runs with the service lock held and
// must copy or encode the notification before returning.
type Sink interface {
	Notify(n *wire.Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(n *wire.Notification)

// Notify calls f(n).
func (f SinkFunc) Notify(n *wire.Notification) { f(n) }

// sinkSet keeps sinks in attach order.
type sinkSet struct {
	next    uint64
	entries []sinkEntry
}

type sinkEntry struct {
	id   uint64
	sink Sink
}

func (s *sinkSet) add(sink Sink) uint64 {
	s.next++
	s.entries = append(s.entries, sinkEntry{id: s.next, sink: sink})
	return s.next
}

func (s *sinkSet) remove(id uint64) bool {
	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (s *sinkSet) len() int {
	return len(s.entries)
}

func (s *sinkSet) notify(n *wire.Notification) {
	for _, e := range s.entries {
		e.sink.Notify(n)
	}
}
