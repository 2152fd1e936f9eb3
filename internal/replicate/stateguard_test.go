package replicate

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/clusterd/internal/cluster"
)

type fakeDirectory struct {
	nodes  []cluster.NodeDescriptor
	states map[cluster.NodeID]cluster.ConnectionState
}

func (f *fakeDirectory) Nodes() []cluster.NodeDescriptor { return f.nodes }

func (f *fakeDirectory) StateOf(id cluster.NodeID) (cluster.ConnectionState, bool) {
	s, ok := f.states[id]
	return s, ok
}

func newFakeDirectory(states map[cluster.NodeID]cluster.ConnectionState) *fakeDirectory {
	dir := &fakeDirectory{states: states}
	for id := range states {
		dir.nodes = append(dir.nodes, cluster.NodeDescriptor{ID: id})
	}
	return dir
}

func TestStateGuardAllowsReadsRegardlessOfState(t *testing.T) {
	dir := newFakeDirectory(map[cluster.NodeID]cluster.ConnectionState{"a": cluster.Disconnected})
	guard := NewStateGuard(dir)
	assert.NoError(t, guard.Check(http.MethodGet))
}

func TestStateGuardRejectsMutationWhenDisconnected(t *testing.T) {
	dir := newFakeDirectory(map[cluster.NodeID]cluster.ConnectionState{"a": cluster.Connected, "b": cluster.Disconnected})
	guard := NewStateGuard(dir)

	err := guard.Check(http.MethodPost)
	require.Error(t, err)
	assert.IsType(t, &DisconnectedNodeRejection{}, err)
}

func TestStateGuardRejectsMutationWhenConnecting(t *testing.T) {
	dir := newFakeDirectory(map[cluster.NodeID]cluster.ConnectionState{"a": cluster.Connecting})
	guard := NewStateGuard(dir)

	err := guard.Check(http.MethodPut)
	require.Error(t, err)
	assert.IsType(t, &ConnectingNodeRejection{}, err)
}

func TestStateGuardAllowsMutationWhenStable(t *testing.T) {
	dir := newFakeDirectory(map[cluster.NodeID]cluster.ConnectionState{"a": cluster.Connected, "b": cluster.Connected})
	guard := NewStateGuard(dir)
	assert.NoError(t, guard.Check(http.MethodDelete))
}
