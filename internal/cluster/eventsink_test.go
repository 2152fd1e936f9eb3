package cluster

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogEventSinkWarn(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogEventSink(log.New(&buf, "", 0))

	sink.Warn("node-1 is slow")

	assert.Contains(t, buf.String(), "node-1 is slow")
}

func TestLogFlowStateTrackerTransitions(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewLogFlowStateTracker(log.New(&buf, "", 0))

	tracker.Begin("req-1", "PUT", "/things/1")
	tracker.Complete("req-1", "PUT", "/things/1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], string(FlowUnknown))
	assert.Contains(t, lines[1], string(FlowCommitted))
}
