package replicate

import (
	"fmt"

	"github.com/dreamware/clusterd/internal/cluster"
)

// InvalidArgumentError is returned synchronously from Replicate when the
// caller's request is malformed: an empty target set, an unrecognized
// method, or a non-absolute URI.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Reason)
}

// DisconnectedNodeRejection is returned synchronously from Replicate when a
// mutating request targets a cluster with at least one node in the
// Disconnected or Disconnecting state.
type DisconnectedNodeRejection struct {
	NodeID string
}

func (e *DisconnectedNodeRejection) Error() string {
	return fmt.Sprintf("node %s is disconnected, rejecting mutating request", e.NodeID)
}

// ConnectingNodeRejection is returned synchronously from Replicate when a
// mutating request targets a cluster with at least one node still in the
// Connecting state.
type ConnectingNodeRejection struct {
	NodeID string
}

func (e *ConnectingNodeRejection) Error() string {
	return fmt.Sprintf("node %s is still connecting, rejecting mutating request", e.NodeID)
}

// OverloadedError is returned synchronously from Replicate when the
// RequestRegistry is already at its concurrent-request cap.
type OverloadedError struct {
	MaxConcurrent int
}

func (e *OverloadedError) Error() string {
	return fmt.Sprintf("replicator overloaded: at capacity (%d in flight)", e.MaxConcurrent)
}

// VerificationRejectedError is the fatal error recorded on an aggregator
// when at least one node answered the verification round with a non-150
// status. Primary is the first dissent observed; Others holds any
// additional dissents collected before the round was adjudicated.
type VerificationRejectedError struct {
	Primary NodeDissent
	Others  []NodeDissent
}

// NodeDissent describes one node's non-150 answer during a verification
// round.
type NodeDissent struct {
	NodeID cluster.NodeID
	Status int
	Detail string
}

func (e *VerificationRejectedError) Error() string {
	return fmt.Sprintf("Node %s is unable to fulfill this request due to: %s", e.Primary.NodeID, e.Primary.Detail)
}

// NodeTransportError records a single node's transport-level failure
// (network error, TLS failure, timeout, malformed target URI) during either
// round. It is never returned synchronously; it is attached to the
// NodeResponse for the offending node.
type NodeTransportError struct {
	NodeID cluster.NodeID
	Cause  error
}

func (e *NodeTransportError) Error() string {
	return fmt.Sprintf("node %s transport error: %v", e.NodeID, e.Cause)
}

func (e *NodeTransportError) Unwrap() error { return e.Cause }

// MergeError is the fatal error recorded on an aggregator when its
// ResponseMerger could not combine the collected responses into one
// payload.
type MergeError struct {
	Cause error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge failed: %v", e.Cause)
}

func (e *MergeError) Unwrap() error { return e.Cause }

// ErrExpired is returned by Replicator.Get for a RequestID that was swept by
// maintenance before the caller polled it. Callers treat it the same as an
// unrecognized RequestID.
var ErrExpired = fmt.Errorf("request expired or unknown")
