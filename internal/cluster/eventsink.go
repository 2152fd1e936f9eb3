package cluster

import "log"

// LogEventSink is the default EventSink: it writes every warning to the
// standard logger. A real deployment would swap this for something that
// pages an operator; the replicator only ever depends on the interface.
type LogEventSink struct {
	logger *log.Logger
}

// NewLogEventSink returns a LogEventSink writing through logger, or the
// standard logger if logger is nil.
func NewLogEventSink(logger *log.Logger) *LogEventSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogEventSink{logger: logger}
}

// Warn implements EventSink.
func (s *LogEventSink) Warn(message string) {
	s.logger.Printf("[warn] %s", message)
}
