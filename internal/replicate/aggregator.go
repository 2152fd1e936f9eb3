package replicate

import (
	"sync"
	"time"

	"github.com/dreamware/clusterd/internal/cluster"
)

// ResponseAggregator collects the NodeResponses for one cluster request,
// knows when the set is complete, and runs a ResponseMerger exactly once on
// first consumption. It is created by the Replicator, owned exclusively by
// it until inserted into the RequestRegistry, and from then on is
// shared-read by the Caller (polling) and shared-write by worker goroutines
// (Add), all serialized by mu.
type ResponseAggregator struct {
	mu            sync.Mutex
	requestID     RequestID
	method        string
	uriPath       string
	expectedNodes map[cluster.NodeID]struct{}
	received      map[cluster.NodeID]NodeResponse
	createdAt     time.Time
	completedAt   time.Time
	consumedAt    time.Time
	merger        ResponseMerger
	merged        *MergedResponse
	fatalError    error
	onComplete    func(*ResponseAggregator)
	onConsume     func(*ResponseAggregator)
	completeFired bool
}

// MergedResponse is the final payload a ResponseMerger produces from a set
// of NodeResponses.
type MergedResponse struct {
	Status int
	Body   []byte
}

// NewResponseAggregator creates an aggregator bound to expectedNodes. The
// Replicator attaches onComplete/onConsume hooks before the aggregator is
// inserted into the registry and made visible to other goroutines.
func NewResponseAggregator(requestID RequestID, method, uriPath string, expectedNodes []cluster.NodeID, merger ResponseMerger) *ResponseAggregator {
	expected := make(map[cluster.NodeID]struct{}, len(expectedNodes))
	for _, id := range expectedNodes {
		expected[id] = struct{}{}
	}
	return &ResponseAggregator{
		requestID:     requestID,
		method:        method,
		uriPath:       uriPath,
		expectedNodes: expected,
		received:      make(map[cluster.NodeID]NodeResponse, len(expectedNodes)),
		createdAt:     time.Now(),
		merger:        merger,
	}
}

// RequestID returns the aggregator's request identifier.
func (a *ResponseAggregator) RequestID() RequestID { return a.requestID }

// Method returns the HTTP method this aggregator was created for.
func (a *ResponseAggregator) Method() string { return a.method }

// URIPath returns the request path this aggregator was created for.
func (a *ResponseAggregator) URIPath() string { return a.uriPath }

// Snapshot returns a copy of every response recorded so far, keyed by
// NodeID. Safe to call at any point in the aggregator's lifecycle.
func (a *ResponseAggregator) Snapshot() map[cluster.NodeID]NodeResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[cluster.NodeID]NodeResponse, len(a.received))
	for id, r := range a.received {
		out[id] = r
	}
	return out
}

// FatalError returns the error that marked this aggregator fatal, if any.
func (a *ResponseAggregator) FatalError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fatalError
}

// RoundDuration returns how long this aggregator took to complete, from
// creation to its completion timestamp. Zero if not yet complete.
func (a *ResponseAggregator) RoundDuration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.completeFired {
		return 0
	}
	return a.completedAt.Sub(a.createdAt)
}

// SetHooks attaches the completion and consumption callbacks. Must be
// called before the aggregator is shared across goroutines.
func (a *ResponseAggregator) SetHooks(onComplete, onConsume func(*ResponseAggregator)) {
	a.onComplete = onComplete
	a.onConsume = onConsume
}

// Add records one node's response. Duplicates (a NodeID already present in
// received) are silently ignored — at-most-one response per node is an
// invariant the aggregator enforces rather than trusts callers to honor.
// When this call causes the received set to reach the expected set, the
// completion timestamp is set and onComplete fires exactly once.
func (a *ResponseAggregator) Add(resp NodeResponse) {
	a.mu.Lock()
	if _, ok := a.expectedNodes[resp.NodeID]; !ok {
		a.mu.Unlock()
		return
	}
	if _, dup := a.received[resp.NodeID]; dup {
		a.mu.Unlock()
		return
	}
	a.received[resp.NodeID] = resp

	fireComplete := false
	if !a.completeFired && (len(a.received) == len(a.expectedNodes) || a.fatalError != nil) {
		a.completedAt = time.Now()
		a.completeFired = true
		fireComplete = true
	}
	hook := a.onComplete
	a.mu.Unlock()

	if fireComplete && hook != nil {
		hook(a)
	}
}

// SetFatal marks the aggregator as fatally failed: further Add calls still
// record responses (visible through Get and Snapshot), but no merge will
// ever be attempted and Consume returns only the fatal error. It completes the aggregator immediately if
// it was not already complete.
func (a *ResponseAggregator) SetFatal(err error) {
	a.mu.Lock()
	if a.fatalError == nil {
		a.fatalError = err
	}
	fireComplete := false
	if !a.completeFired {
		a.completedAt = time.Now()
		a.completeFired = true
		fireComplete = true
	}
	hook := a.onComplete
	a.mu.Unlock()

	if fireComplete && hook != nil {
		hook(a)
	}
}

// Get returns the single per-node response recorded so far, if any.
func (a *ResponseAggregator) Get(id cluster.NodeID) (NodeResponse, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.received[id]
	return r, ok
}

// IsComplete reports whether every expected node has answered, or the
// aggregator was marked fatal.
func (a *ResponseAggregator) IsComplete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completeFired
}

// IsOlderThan reports whether this aggregator completed more than d before
// now. An aggregator that has not completed is never "older" for GC
// purposes.
func (a *ResponseAggregator) IsOlderThan(d time.Duration, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.completeFired {
		return false
	}
	return now.Sub(a.completedAt) > d
}

// Durations returns a snapshot of every node's observed latency, for the
// SlowNodeMonitor to evaluate once the aggregator completes. Safe to call
// only after IsComplete() is true.
func (a *ResponseAggregator) Durations() map[cluster.NodeID]time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[cluster.NodeID]time.Duration, len(a.received))
	for id, r := range a.received {
		out[id] = r.Duration
	}
	return out
}

// ExpectedNodes returns the full target set this aggregator was created
// with, independent of how many have answered.
func (a *ResponseAggregator) ExpectedNodes() []cluster.NodeID {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]cluster.NodeID, 0, len(a.expectedNodes))
	for id := range a.expectedNodes {
		out = append(out, id)
	}
	return out
}

// Consume runs the ResponseMerger on the collected responses the first time
// it is called, closes every body the merger didn't consume, and fires the
// consumption hook exactly once (idempotent: later calls return the same
// result without re-running the merger or the hook).
func (a *ResponseAggregator) Consume() (*MergedResponse, error) {
	a.mu.Lock()
	if !a.consumedAt.IsZero() {
		merged, err := a.merged, a.fatalError
		a.mu.Unlock()
		return merged, err
	}
	a.consumedAt = time.Now()

	var merged *MergedResponse
	var mergeErr error
	if a.fatalError == nil {
		responses := make([]NodeResponse, 0, len(a.received))
		for _, r := range a.received {
			responses = append(responses, r)
		}
		merged, mergeErr = a.merger.Merge(a.method, a.uriPath, responses)
		if mergeErr != nil {
			a.fatalError = &MergeError{Cause: mergeErr}
		} else {
			a.merged = merged
		}
	}
	for _, r := range a.received {
		r.CloseBody()
	}

	result, err := a.merged, a.fatalError
	hook := a.onConsume
	a.mu.Unlock()

	if hook != nil {
		hook(a)
	}
	return result, err
}

// Consumed reports whether Consume has already run.
func (a *ResponseAggregator) Consumed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.consumedAt.IsZero()
}
