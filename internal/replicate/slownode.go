package replicate

import (
	"fmt"
	"sync"
	"time"

	"github.com/dreamware/clusterd/internal/cluster"
)

// DefaultSlowFactor is the multiple of the round's mean latency a node must
// exceed to count as an outlier for one round.
const DefaultSlowFactor = 1.5

// DefaultSlowStrikes is the number of consecutive outlier rounds a node
// must accumulate before SlowNodeMonitor emits a warning.
const DefaultSlowStrikes = 3

// SlowNodeMonitor watches per-round node latencies and warns through an
// EventSink once a node has been a consistent outlier for several rounds in
// a row, rather than on a single slow response — a single GC pause or a
// momentary blip shouldn't page anyone.
type SlowNodeMonitor struct {
	mu         sync.Mutex
	sink       cluster.EventSink
	slowFactor float64
	strikes    int
	counters   map[cluster.NodeID]int
}

// NewSlowNodeMonitor builds a monitor that warns through sink. A slowFactor
// or strikes of 0 falls back to the package defaults.
func NewSlowNodeMonitor(sink cluster.EventSink, slowFactor float64, strikes int) *SlowNodeMonitor {
	if slowFactor <= 0 {
		slowFactor = DefaultSlowFactor
	}
	if strikes <= 0 {
		strikes = DefaultSlowStrikes
	}
	return &SlowNodeMonitor{
		sink:       sink,
		slowFactor: slowFactor,
		strikes:    strikes,
		counters:   make(map[cluster.NodeID]int),
	}
}

// Evaluate inspects one completed round's per-node durations, computes the
// round's mean, and flags any node whose duration exceeds slowFactor times
// that mean. A node must be flagged in `strikes` consecutive calls to
// Evaluate before a warning fires; any non-outlier round resets its streak.
// Returns how many warnings fired this round, for the caller to report as
// a metric.
func (m *SlowNodeMonitor) Evaluate(durations map[cluster.NodeID]time.Duration) int {
	if len(durations) < 2 {
		return 0
	}

	var total time.Duration
	for _, d := range durations {
		total += d
	}
	mean := total / time.Duration(len(durations))
	if mean <= 0 {
		return 0
	}
	threshold := time.Duration(float64(mean) * m.slowFactor)

	m.mu.Lock()
	defer m.mu.Unlock()
	warnings := 0
	for id, d := range durations {
		if d > threshold {
			m.counters[id]++
			if m.counters[id] >= m.strikes {
				m.counters[id] = 0
				warnings++
				if m.sink != nil {
					m.sink.Warn(fmt.Sprintf("node %s has been slow for %d consecutive rounds (last: %s, round mean: %s)", id, m.strikes, d, mean))
				}
			}
		} else {
			m.counters[id] = 0
		}
	}
	return warnings
}
