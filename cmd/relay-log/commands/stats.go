package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	EventsByTransport map[log.Transport]int
	Methods           map[string]*MethodStats
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}

	// pending maps "connID/requestID" to the method of an open request.
	pending map[string]string
}

// MethodStats counts requests and responses for one method.
type MethodStats struct {
	Requests      int
	Failures      int
	Notifications int
	TotalTime     time.Duration
	Responses     int
}

// AverageTime returns the mean processing time of the responses.
func (m *MethodStats) AverageTime() time.Duration {
	if m.Responses == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(m.Responses)
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	Transport  log.Transport
	RemoteAddr string
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Snapshots  int
}

// CollectStats reads the log file and aggregates its events.
func CollectStats(path string) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		EventsByTransport: make(map[log.Transport]int),
		Methods:           make(map[string]*MethodStats),
		Connections:       make(map[string]*ConnectionStats),
		pending:           make(map[string]string),
	}
	if err := forEach(path, log.Filter{}, stats.add); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) error {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++
	s.EventsByTransport[event.Transport]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn := s.Connections[event.ConnectionID]
	if conn == nil {
		conn = &ConnectionStats{Transport: event.Transport, FirstSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if conn.RemoteAddr == "" {
		conn.RemoteAddr = event.RemoteAddr
	}
	if event.Snapshot != nil {
		conn.Snapshots++
	}
	if event.Error != nil {
		s.Errors++
	}
	if event.Message != nil && event.Layer == log.LayerWire {
		s.countMessage(event.ConnectionID, event.Message)
	}
	return nil
}

func (s *Stats) method(name string) *MethodStats {
	m, ok := s.Methods[name]
	if !ok {
		m = &MethodStats{}
		s.Methods[name] = m
	}
	return m
}

// countMessage tallies wire messages per method. Responses carry no method,
// so they are matched to their request by connection and ID.
func (s *Stats) countMessage(connID string, msg *log.MessageEvent) {
	pending := s.pending
	key := connID + "/" + msg.ID
	switch msg.Type {
	case log.MessageTypeRequest:
		s.method(msg.Method).Requests++
		if msg.ID != "" {
			pending[key] = msg.Method
		}
	case log.MessageTypeNotification:
		s.method(msg.Method).Notifications++
	case log.MessageTypeResponse:
		name, ok := pending[key]
		if !ok {
			return
		}
		delete(pending, key)
		m := s.method(name)
		m.Responses++
		if msg.Code != nil && *msg.Code != wire.NoError {
			m.Failures++
		}
		if msg.ProcessingTime != nil {
			m.TotalTime += *msg.ProcessingTime
		}
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Smart Relay Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerService} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError, log.CategorySnapshot} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Transport:")
	for _, tr := range []log.Transport{log.TransportLocal, log.TransportWebSocket, log.TransportMQTT} {
		if count := stats.EventsByTransport[tr]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", tr.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Methods) > 0 {
		names := make([]string, 0, len(stats.Methods))
		for name := range stats.Methods {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "Methods:")
		for _, name := range names {
			m := stats.Methods[name]
			fmt.Fprintf(w, "  %-12s requests=%d failures=%d notifications=%d", name+":", m.Requests, m.Failures, m.Notifications)
			if m.Responses > 0 {
				fmt.Fprintf(w, " avg=%s", formatDuration(m.AverageTime()))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			if conns[i].stats.FirstSeen.Equal(conns[j].stats.FirstSeen) {
				return conns[i].id < conns[j].id
			}
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s, %d events, duration %s\n",
				shortenConnID(c.id), c.stats.Transport.String(), c.stats.Events, duration)
			if c.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Remote: %s\n", c.stats.RemoteAddr)
			}
			if c.stats.Snapshots > 0 {
				fmt.Fprintf(w, "           Snapshots: %d\n", c.stats.Snapshots)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
