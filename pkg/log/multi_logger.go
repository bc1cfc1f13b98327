package log

// MultiLogger fans events out to several loggers, typically a FileLogger
// and a SlogAdapter.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger returns a MultiLogger over loggers. Nil and NoopLogger
// entries are skipped and nested MultiLoggers are flattened.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		m.add(l)
	}
	return m
}

func (m *MultiLogger) add(l Logger) {
	switch v := l.(type) {
	case nil, NoopLogger:
	case *MultiLogger:
		m.loggers = append(m.loggers, v.loggers...)
	default:
		m.loggers = append(m.loggers, l)
	}
}

// Len returns the number of loggers events go to.
func (m *MultiLogger) Len() int { return len(m.loggers) }

// Log passes the event to every logger in order.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}
