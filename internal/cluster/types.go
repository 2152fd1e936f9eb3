package cluster

import "fmt"

// NodeID identifies one data-plane node within the cluster. It is carried on
// every NodeRequest/NodeResponse so a caller can tell which node a given
// aggregated entry came from.
type NodeID string

// ConnectionState describes where a node currently sits in the coordinator's
// view of cluster membership. Only Connected nodes are considered stable
// enough to accept a mutating replicated request; see StateGuard.
type ConnectionState string

const (
	// Connected means the node answered its last health probe successfully.
	Connected ConnectionState = "connected"
	// Connecting means the node has registered but has not yet answered a
	// health probe successfully; failed probes leave it Connecting.
	Connecting ConnectionState = "connecting"
	// Disconnecting means probes have started failing but the failure
	// threshold to declare the node fully gone has not yet been reached.
	Disconnecting ConnectionState = "disconnecting"
	// Disconnected means the node has failed enough consecutive probes to
	// be considered unreachable.
	Disconnected ConnectionState = "disconnected"
)

// NodeDescriptor is the concrete shape of a node identity as handed out by a
// ClusterDirectory implementation: enough to address the node over HTTP and
// to know whether it is safe to include in a mutating round.
type NodeDescriptor struct {
	ID      NodeID
	APIHost string
	APIPort int
	State   ConnectionState
}

// Addr renders the descriptor's host:port pair, the form NodeClient needs to
// rewrite a NodeRequest's target URI against this node.
func (d NodeDescriptor) Addr() string {
	return fmt.Sprintf("%s:%d", d.APIHost, d.APIPort)
}

// ClusterDirectory enumerates node identities and their connection state.
// The replicator treats it as an external collaborator: it never mutates
// membership, it only reads a snapshot before dispatching a round.
type ClusterDirectory interface {
	// Nodes returns every node the directory currently knows about. The
	// returned slice is a snapshot: the caller may retain it without
	// racing future membership changes.
	Nodes() []NodeDescriptor

	// StateOf returns the connection state of a single node, and false if
	// the node is unknown to the directory.
	StateOf(id NodeID) (ConnectionState, bool)
}

// FlowState describes the coordinator's belief about whether a mutating
// request's cluster-wide effect is known to have happened.
type FlowState string

const (
	// FlowUnknown is set the instant a mutating request begins a
	// verification round: the cluster's state with respect to this request
	// cannot yet be trusted.
	FlowUnknown FlowState = "unknown"
	// FlowCommitted is set once a mutating request completes — after its
	// apply round (successful or not) or after a verification rejection —
	// so the coordinator knows the final outcome.
	FlowCommitted FlowState = "committed"
)

// FlowStateTracker is notified when a mutation begins and completes, so an
// external system (e.g. a write-ahead intent log) can reconcile state if the
// coordinator crashes mid-flight. The replicator calls this synchronously on
// its own goroutines; implementations must not block for long.
type FlowStateTracker interface {
	// Begin marks a mutating request's flow state as FlowUnknown, to be
	// called before the verification round is dispatched.
	Begin(requestID string, method, path string)
	// Complete marks a mutating request's flow state as FlowCommitted, to
	// be called once the public aggregator completes (Complete or Failed).
	Complete(requestID string, method, path string)
}

// EventSink receives operator-visible warnings — today just slow-node
// reports from replicate.SlowNodeMonitor, but the interface is intentionally
// narrow so other warning types can be added without touching the
// replicator.
type EventSink interface {
	// Warn emits a single operator-visible warning message.
	Warn(message string)
}
