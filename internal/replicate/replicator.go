package replicate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dreamware/clusterd/internal/cluster"
)

// DefaultNumThreads bounds how many node dispatches the Replicator runs at
// once across every request in flight, applied when Config.NumThreads is
// left at 0.
const DefaultNumThreads = 32

// Config controls the tunables of a Replicator. Zero values fall back to
// package defaults.
type Config struct {
	// NumThreads bounds concurrent outbound node dispatches.
	NumThreads int
	// MaxConcurrentRequests bounds simultaneous entries in the request
	// registry.
	MaxConcurrentRequests int
	// ConnectTimeout and ReadTimeout bound a single node call.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// MaintenanceInterval and RequestMaxAge control the garbage collector.
	MaintenanceInterval time.Duration
	RequestMaxAge       time.Duration
	// SlowFactor and SlowStrikes control SlowNodeMonitor sensitivity.
	SlowFactor  float64
	SlowStrikes int
	// Mergers, if set, replaces the default merger registry (FirstSuccess
	// fallback with a JSON-object summing merger for application/json
	// bodies).
	Mergers *MergerRegistry
}

// Replicator is the coordinator-side orchestrator: it validates an
// incoming request, runs the two-phase verify/apply protocol for mutating
// methods (single-phase dispatch for everything else), and publishes the
// resulting ResponseAggregator through a RequestRegistry the caller polls.
type Replicator struct {
	directory      cluster.ClusterDirectory
	stateGuard     *StateGuard
	registry       *RequestRegistry
	nodeClient     *NodeClient
	mergers        *MergerRegistry
	flowTracker    cluster.FlowStateTracker
	slowNode       *SlowNodeMonitor
	metrics        *Metrics
	sem            *semaphore.Weighted
	maintenance    *MaintenanceLoop
	connectTimeout time.Duration
	readTimeout    time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReplicator wires a Replicator from its collaborators. directory,
// flowTracker, and eventSink are the external systems the replicator never
// owns the lifecycle of; metrics may be nil to disable instrumentation.
func NewReplicator(cfg Config, directory cluster.ClusterDirectory, flowTracker cluster.FlowStateTracker, eventSink cluster.EventSink, metrics *Metrics) *Replicator {
	numThreads := cfg.NumThreads
	if numThreads <= 0 {
		numThreads = DefaultNumThreads
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}

	mergers := cfg.Mergers
	if mergers == nil {
		mergers = NewMergerRegistry(FirstSuccessMerger{})
		mergers.Register("", "", "application/json", JSONSumMerger{})
	}

	registry := NewRequestRegistry(cfg.MaxConcurrentRequests)
	maintenance := NewMaintenanceLoop(registry, cfg.MaintenanceInterval, cfg.RequestMaxAge)
	if metrics != nil {
		maintenance.SetSweepHook(func(n int) { metrics.SweptRequests.Add(float64(n)) })
	}

	return &Replicator{
		directory:      directory,
		stateGuard:     NewStateGuard(directory),
		registry:       registry,
		nodeClient:     NewNodeClient(connectTimeout, readTimeout),
		mergers:        mergers,
		flowTracker:    flowTracker,
		slowNode:       NewSlowNodeMonitor(eventSink, cfg.SlowFactor, cfg.SlowStrikes),
		metrics:        metrics,
		sem:            semaphore.NewWeighted(int64(numThreads)),
		maintenance:    maintenance,
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
	}
}

// Start launches the background maintenance loop. It returns immediately;
// Stop must be called to release its goroutine.
func (r *Replicator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.maintenance.Run(ctx)
	}()
}

// Stop cancels the maintenance loop and waits for every in-flight
// dispatch goroutine this Replicator launched to finish.
func (r *Replicator) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Replicate validates and admits one cluster-wide request, returning its
// RequestID immediately. For mutating methods the verification and apply
// rounds run on a background goroutine; Get polls the eventual result. For
// read-only methods a single round runs the same way. requestID may be
// empty, in which case the X-Request-Transaction-Id header's value is used,
// or a fresh one is generated if that header is absent too.
func (r *Replicator) Replicate(ctx context.Context, requestID RequestID, method, uriPath string, body []byte, headers http.Header) (RequestID, error) {
	if !IsAcceptedMethod(method) {
		return "", &InvalidArgumentError{Reason: fmt.Sprintf("unsupported method %q", method)}
	}
	if !strings.HasPrefix(uriPath, "/") {
		return "", &InvalidArgumentError{Reason: fmt.Sprintf("uri path %q is not absolute", uriPath)}
	}
	targets := r.directory.Nodes()
	if len(targets) == 0 {
		return "", &InvalidArgumentError{Reason: "no nodes registered in cluster"}
	}
	if IsMutating(method) {
		if err := r.stateGuard.Check(method); err != nil {
			return "", err
		}
	}
	if headers == nil {
		headers = make(http.Header)
	}
	if requestID == "" {
		requestID = RequestID(headers.Get(HeaderTransactionID))
	}
	if requestID == "" {
		requestID = NewRequestID()
	}

	nodeIDs := make([]cluster.NodeID, len(targets))
	for i, t := range targets {
		nodeIDs[i] = t.ID
	}
	merger := r.mergers.Select(method, uriPath, headers.Get("Content-Type"))
	agg := NewResponseAggregator(requestID, method, uriPath, nodeIDs, merger)
	agg.SetHooks(r.onRoundComplete, r.onConsumed)

	if !r.registry.Insert(agg) {
		if r.metrics != nil {
			r.metrics.OverloadRejections.Inc()
		}
		return "", &OverloadedError{MaxConcurrent: r.registry.MaxConcurrent()}
	}
	if r.metrics != nil {
		r.metrics.InFlightRequests.Set(float64(r.registry.Len()))
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if IsMutating(method) {
			r.flowTracker.Begin(string(requestID), method, uriPath)
			r.runTwoPhase(ctx, targets, method, uriPath, body, headers, requestID, agg)
		} else {
			r.dispatchRound(ctx, targets, method, uriPath, body, headers, requestID, false, agg)
		}
	}()

	return requestID, nil
}

// Get returns the aggregator registered for requestID, or ErrExpired if it
// was never admitted or has already been swept.
func (r *Replicator) Get(requestID RequestID) (*ResponseAggregator, error) {
	agg, ok := r.registry.Lookup(requestID)
	if !ok {
		return nil, ErrExpired
	}
	return agg, nil
}

// Release drops requestID from the registry immediately, for a caller that
// abandons a request without consuming it and wants its capacity slot back
// without waiting for maintenance to sweep it. (Consuming a result already
// removes its entry.)
func (r *Replicator) Release(requestID RequestID) {
	r.registry.Remove(requestID)
}

// runTwoPhase executes the verification round against a private
// aggregator, and only if every node answers StatusVerifyAccept proceeds
// to the apply round against the public aggregator the caller is polling.
func (r *Replicator) runTwoPhase(ctx context.Context, targets []cluster.NodeDescriptor, method, uriPath string, body []byte, headers http.Header, requestID RequestID, agg *ResponseAggregator) {
	nodeIDs := make([]cluster.NodeID, len(targets))
	for i, t := range targets {
		nodeIDs[i] = t.ID
	}
	verifyAgg := NewResponseAggregator(requestID, method, uriPath, nodeIDs, FirstSuccessMerger{})
	r.dispatchRound(ctx, targets, method, uriPath, body, headers, requestID, true, verifyAgg)

	if dissents := collectDissents(verifyAgg); len(dissents) > 0 {
		if r.metrics != nil {
			r.metrics.VerificationRejections.Inc()
		}
		agg.SetFatal(&VerificationRejectedError{Primary: dissents[0], Others: dissents[1:]})
		return
	}

	r.dispatchRound(ctx, targets, method, uriPath, body, headers, requestID, false, agg)
}

// collectDissents adjudicates a completed verification round: every
// response body is read and closed exactly once here (the verify-round
// aggregator is never Consume()d, since its only purpose is adjudication),
// and any node that did not answer StatusVerifyAccept is reported as a
// dissent whose Detail is that node's own rejection body, in deterministic
// NodeID order.
func collectDissents(verifyAgg *ResponseAggregator) []NodeDissent {
	snapshot := verifyAgg.Snapshot()
	dissents := make([]NodeDissent, 0)
	for id, resp := range snapshot {
		switch {
		case resp.IsError():
			dissents = append(dissents, NodeDissent{NodeID: id, Status: StatusError, Detail: resp.Err.Error()})
		case resp.VerifyStatus() != StatusVerifyAccept:
			dissents = append(dissents, NodeDissent{NodeID: id, Status: resp.VerifyStatus(), Detail: dissentDetail(resp)})
			resp.CloseBody()
		default:
			resp.CloseBody()
		}
	}
	sort.Slice(dissents, func(i, j int) bool { return dissents[i].NodeID < dissents[j].NodeID })
	return dissents
}

// dissentDetail reads a dissenting node's rejection body into the dissent
// explanation the caller ultimately sees, falling back to a generic message
// if the node sent none.
func dissentDetail(resp NodeResponse) string {
	if resp.Body == nil {
		return fmt.Sprintf("node declined verification with status %d", resp.VerifyStatus())
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("node declined verification with status %d", resp.VerifyStatus())
	}
	detail := strings.TrimSpace(string(raw))
	if detail == "" {
		return fmt.Sprintf("node declined verification with status %d", resp.VerifyStatus())
	}
	return detail
}

// dispatchRound fans req out to every target concurrently, bounded by the
// Replicator's shared semaphore, and blocks until every node has answered
// or the context is done.
func (r *Replicator) dispatchRound(ctx context.Context, targets []cluster.NodeDescriptor, method, uriPath string, body []byte, headers http.Header, requestID RequestID, verify bool, target *ResponseAggregator) {
	var wg sync.WaitGroup
	for _, node := range targets {
		wg.Add(1)
		go func(n cluster.NodeDescriptor) {
			defer wg.Done()
			if err := r.sem.Acquire(ctx, 1); err != nil {
				target.Add(NodeResponse{
					NodeID: n.ID,
					Method: method,
					Status: StatusError,
					Err:    &NodeTransportError{NodeID: n.ID, Cause: err},
				})
				return
			}
			defer r.sem.Release(1)

			req := r.buildNodeRequest(n, method, uriPath, body, headers, requestID, verify)
			target.Add(r.nodeClient.Do(ctx, req))
		}(node)
	}
	wg.Wait()
}

// buildNodeRequest rewrites the caller's request against one node's
// address and stamps the headers the wire protocol requires.
func (r *Replicator) buildNodeRequest(node cluster.NodeDescriptor, method, uriPath string, body []byte, headers http.Header, requestID RequestID, verify bool) NodeRequest {
	h := headers.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(HeaderTransactionID, string(requestID))
	h.Set(HeaderRequestID, newAttemptID())
	if verify {
		h.Set(HeaderVerifyIntent, VerifyIntentValue)
	}

	return NodeRequest{
		NodeID:    node.ID,
		Method:    method,
		TargetURI: &url.URL{Scheme: "http", Host: node.Addr(), Path: uriPath},
		Body:      body,
		Headers:   h,
		Deadline:  time.Now().Add(r.connectTimeout + r.readTimeout),
	}
}

// onRoundComplete is the aggregator completion hook shared by every public
// aggregator: it reports the request's flow state and feeds the round's
// per-node latencies to the slow-node monitor.
func (r *Replicator) onRoundComplete(agg *ResponseAggregator) {
	if IsMutating(agg.Method()) {
		r.flowTracker.Complete(string(agg.RequestID()), agg.Method(), agg.URIPath())
	}
	if r.slowNode != nil {
		warnings := r.slowNode.Evaluate(agg.Durations())
		if warnings > 0 && r.metrics != nil {
			r.metrics.SlowNodeWarnings.Add(float64(warnings))
		}
	}
	if r.metrics != nil {
		r.metrics.RoundDuration.WithLabelValues(roundPhase(agg)).Observe(agg.RoundDuration().Seconds())
	}
}

// onConsumed is the aggregator consumption hook for every public aggregator:
// once a caller has Consume()d a result, the registry entry no longer needs
// to hold its capacity slot, so it is released immediately rather than
// waiting for the maintenance loop's TTL sweep. A repeat GET of the same
// RequestID after this point correctly sees "not found" instead of
// replaying the merged body.
func (r *Replicator) onConsumed(agg *ResponseAggregator) {
	r.registry.Remove(agg.RequestID())
	if r.metrics != nil {
		r.metrics.InFlightRequests.Set(float64(r.registry.Len()))
	}
}

func roundPhase(agg *ResponseAggregator) string {
	if IsMutating(agg.Method()) {
		return "apply"
	}
	return "read"
}
