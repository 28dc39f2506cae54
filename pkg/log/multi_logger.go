package log

// MultiLogger fans events out to several loggers, typically a FileLogger
// and a SlogAdapter.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger returns a logger that sends each event to every non-nil
// logger in loggers, in order.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log sends event to all loggers.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
