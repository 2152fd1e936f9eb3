// Package replicate implements the cluster-wide HTTP request replicator: the
// orchestrator that fans one inbound API call out to every data-plane node,
// runs an optional two-phase verify/apply protocol for mutating calls,
// aggregates the per-node responses, and garbage-collects completed
// requests.
//
// # Overview
//
// A Replicator is constructed once per coordinator process and owns two
// pieces of long-lived shared state: a RequestRegistry (the process-wide map
// from RequestID to in-flight ResponseAggregator) and a SlowNodeMonitor's
// per-node strike counters. Everything else — NodeClient, StateGuard,
// individual aggregators — is either stateless or scoped to one request.
//
// # Architecture
//
//	                    Caller
//	                      │
//	                      ▼
//	              ┌───────────────┐
//	              │  Replicator   │
//	              │ .Replicate()  │
//	              └───────┬───────┘
//	           StateGuard │ RequestRegistry.Insert
//	                      ▼
//	        ┌─────────────────────────────┐
//	        │   bounded worker pool (N)    │
//	        │  goroutine per target node   │
//	        └──────────────┬───────────────┘
//	                       ▼
//	                 NodeClient.Do
//	                       │
//	                       ▼
//	           ResponseAggregator.Add
//	                       │
//	           (all arrived) onComplete
//	                       │
//	         SlowNodeMonitor.Evaluate + FlowStateTracker.Complete
//	                       │
//	               Caller polls Get(requestID)
//	                       │
//	                Aggregator.Consume → ResponseMerger
//
// # Two-phase commit
//
// A mutating request (POST/PUT/DELETE) always runs a verification round
// first; Replicate has no option to skip it. In that round every target node receives the same request
// with an added X-Verify-Intent header and is expected to answer with the
// sentinel status 150 (accept) or 417 (reject). Only if every node accepts
// does the apply round — the real request — get dispatched, reusing the
// same public ResponseAggregator the caller is already holding a handle to.
// A single dissenting or unreachable node during verification aborts the
// whole request before any apply NodeRequest is ever sent.
//
// # Garbage collection
//
// Callers that never poll would otherwise leak aggregators forever.
// MaintenanceLoop periodically sweeps the RequestRegistry, evicting
// completed aggregators past their TTL and running their consumption hook
// exactly as an explicit Consume() would, so "abandoned" and "polled" both
// observe exactly-once hook semantics.
package replicate
