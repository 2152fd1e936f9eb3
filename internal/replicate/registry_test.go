package replicate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/clusterd/internal/cluster"
)

func TestRequestRegistryInsertAndLookup(t *testing.T) {
	reg := NewRequestRegistry(2)
	agg := NewResponseAggregator("req-1", "GET", "/x", []cluster.NodeID{"a"}, FirstSuccessMerger{})

	require.True(t, reg.Insert(agg))
	got, ok := reg.Lookup("req-1")
	require.True(t, ok)
	assert.Same(t, agg, got)
}

func TestRequestRegistryRejectsOverCapacity(t *testing.T) {
	reg := NewRequestRegistry(1)
	require.True(t, reg.Insert(NewResponseAggregator("req-1", "GET", "/x", []cluster.NodeID{"a"}, FirstSuccessMerger{})))
	assert.False(t, reg.Insert(NewResponseAggregator("req-2", "GET", "/x", []cluster.NodeID{"a"}, FirstSuccessMerger{})))
}

func TestRequestRegistryRemoveFreesCapacity(t *testing.T) {
	reg := NewRequestRegistry(1)
	agg := NewResponseAggregator("req-1", "GET", "/x", []cluster.NodeID{"a"}, FirstSuccessMerger{})
	require.True(t, reg.Insert(agg))

	reg.Remove("req-1")
	assert.Equal(t, 0, reg.Len())
	assert.True(t, reg.Insert(NewResponseAggregator("req-2", "GET", "/x", []cluster.NodeID{"a"}, FirstSuccessMerger{})))
}

func TestRequestRegistryDefaultsMaxConcurrent(t *testing.T) {
	reg := NewRequestRegistry(0)
	assert.Equal(t, DefaultMaxConcurrent, reg.MaxConcurrent())
}

func TestRequestRegistrySweepExpiredOnlyEvictsCompletedAndOld(t *testing.T) {
	reg := NewRequestRegistry(10)

	stillRunning := NewResponseAggregator("running", "GET", "/x", []cluster.NodeID{"a", "b"}, FirstSuccessMerger{})
	stillRunning.Add(NodeResponse{NodeID: "a", Status: 200})
	require.True(t, reg.Insert(stillRunning))

	completed := NewResponseAggregator("done", "GET", "/x", []cluster.NodeID{"a"}, FirstSuccessMerger{})
	completed.Add(NodeResponse{NodeID: "a", Status: 200})
	require.True(t, completed.IsComplete())
	require.True(t, reg.Insert(completed))

	evicted := reg.SweepExpired(0, time.Now().Add(time.Second))
	assert.Equal(t, 1, evicted)

	_, ok := reg.Lookup("done")
	assert.False(t, ok)
	_, ok = reg.Lookup("running")
	assert.True(t, ok)
}
