package log

// Logger receives protocol events. Implementations must be safe for
// concurrent use and must not block: Log is called from the service while
// it holds its lock.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(event Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger discards every event. The zero value is ready to use.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

// OrNoop returns l, or NoopLogger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}
