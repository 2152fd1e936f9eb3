package cluster

import "log"

// LogFlowStateTracker is the default FlowStateTracker: it logs every begin
// and complete transition instead of persisting them. It exists so
// cmd/coordinator runs end-to-end without a real intent log wired in; a
// production deployment would replace it with one backed by durable
// storage.
type LogFlowStateTracker struct {
	logger *log.Logger
}

// NewLogFlowStateTracker returns a tracker writing through logger, or the
// standard logger if logger is nil.
func NewLogFlowStateTracker(logger *log.Logger) *LogFlowStateTracker {
	if logger == nil {
		logger = log.Default()
	}
	return &LogFlowStateTracker{logger: logger}
}

// Begin implements FlowStateTracker.
func (t *LogFlowStateTracker) Begin(requestID, method, path string) {
	t.logger.Printf("flow %s %s %s -> %s", requestID, method, path, FlowUnknown)
}

// Complete implements FlowStateTracker.
func (t *LogFlowStateTracker) Complete(requestID, method, path string) {
	t.logger.Printf("flow %s %s %s -> %s", requestID, method, path, FlowCommitted)
}
