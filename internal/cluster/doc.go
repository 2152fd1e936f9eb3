// Package cluster provides the collaborator interfaces the replication engine
// depends on — cluster membership, connection-state tracking, and the two
// small callback contracts (FlowStateTracker, EventSink) the coordinator
// wires into every mutating request — plus one concrete implementation of
// each so the system is runnable without an external control plane.
//
// # Overview
//
// The replicator (package replicate) never talks to etcd, Raft, or any
// membership protocol directly. It only ever asks a ClusterDirectory "who
// are the nodes and what state are they in" and tells a FlowStateTracker /
// EventSink what happened. This package is the seam: it defines those
// contracts and ships a connection tracker built on periodic HTTP health
// probes, in the same spirit as a service mesh's outlier detector.
//
// # Architecture
//
//	┌──────────────────────────────┐
//	│        ConnectionTracker      │
//	│  (implements ClusterDirectory)│
//	├──────────────────────────────┤
//	│ nodes: map[NodeID]*nodeRecord │
//	│  periodic GET /health probe   │
//	│  Connected/Connecting/        │
//	│  Disconnecting/Disconnected   │
//	└───────────────┬───────────────┘
//	                │ Nodes() / StateOf()
//	                ▼
//	        replicate.StateGuard
//
// # Connection states
//
// A node starts Connecting (just registered, not yet probed), becomes
// Connected once a health probe succeeds, and moves to Disconnecting then
// Disconnected as probes keep failing. Mutating requests are rejected
// outright while any node sits in Connecting, Disconnecting, or
// Disconnected.
package cluster
