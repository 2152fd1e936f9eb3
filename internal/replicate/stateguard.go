package replicate

import "github.com/dreamware/clusterd/internal/cluster"

// StateGuard rejects mutating requests while the cluster's membership is in
// flux: a node still Connecting has not yet proven it can answer the
// verification round, and a node Disconnecting or Disconnected cannot
// answer it at all. Read-only requests bypass the guard entirely — a stale
// read from a wobbly node is tolerable where a lost write is not.
type StateGuard struct {
	directory cluster.ClusterDirectory
}

// NewStateGuard wraps directory for use by a Replicator.
func NewStateGuard(directory cluster.ClusterDirectory) *StateGuard {
	return &StateGuard{directory: directory}
}

// Check inspects every node in the directory and returns the first
// rejection a mutating method triggers, or nil if the cluster is stable
// enough to proceed. method values that are not mutating (per IsMutating)
// always pass.
func (g *StateGuard) Check(method string) error {
	if !IsMutating(method) {
		return nil
	}
	for _, node := range g.directory.Nodes() {
		state, ok := g.directory.StateOf(node.ID)
		if !ok {
			continue
		}
		switch state {
		case cluster.Disconnected, cluster.Disconnecting:
			return &DisconnectedNodeRejection{NodeID: string(node.ID)}
		case cluster.Connecting:
			return &ConnectingNodeRejection{NodeID: string(node.ID)}
		}
	}
	return nil
}
