package replicate

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/clusterd/internal/cluster"
)

func bodyResponse(id, body string, status int) NodeResponse {
	return NodeResponse{NodeID: cluster.NodeID(id), Status: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestFirstSuccessMergerPrefersFirst2xxInNodeOrder(t *testing.T) {
	responses := []NodeResponse{
		bodyResponse("b", "from-b", http.StatusOK),
		bodyResponse("a", "from-a", http.StatusOK),
	}
	merger := FirstSuccessMerger{}
	merged, err := merger.Merge(http.MethodGet, "/items", responses)
	require.NoError(t, err)
	assert.Equal(t, "from-a", string(merged.Body))
}

func TestFirstSuccessMergerFallsBackWhenNoneSucceed(t *testing.T) {
	responses := []NodeResponse{
		bodyResponse("a", "failure", http.StatusInternalServerError),
	}
	merger := FirstSuccessMerger{}
	merged, err := merger.Merge(http.MethodGet, "/items", responses)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, merged.Status)
}

func TestJSONSumMergerSumsNumericFields(t *testing.T) {
	responses := []NodeResponse{
		bodyResponse("a", `{"written":2,"shard":"a"}`, http.StatusOK),
		bodyResponse("b", `{"written":3,"shard":"b"}`, http.StatusOK),
	}
	merger := JSONSumMerger{}
	merged, err := merger.Merge(http.MethodPost, "/items", responses)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(merged.Body, &decoded))
	assert.Equal(t, float64(5), decoded["written"])
}

func TestJSONSumMergerIgnoresNonJSONBodyOnErrorStatus(t *testing.T) {
	responses := []NodeResponse{
		bodyResponse("a", "key not found\n", http.StatusNotFound),
		bodyResponse("b", "key not found\n", http.StatusNotFound),
	}
	merger := JSONSumMerger{}
	merged, err := merger.Merge(http.MethodGet, "/items", responses)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, merged.Status)
}

func TestMergerRegistrySelectsByContentType(t *testing.T) {
	reg := NewMergerRegistry(FirstSuccessMerger{})
	reg.Register("", "", "application/json", JSONSumMerger{})

	selected := reg.Select(http.MethodPost, "/items", "application/json; charset=utf-8")
	assert.IsType(t, JSONSumMerger{}, selected)

	fallback := reg.Select(http.MethodGet, "/items", "text/plain")
	assert.IsType(t, FirstSuccessMerger{}, fallback)
}

func TestMergerRegistryPathPrefixTakesPrecedence(t *testing.T) {
	reg := NewMergerRegistry(FirstSuccessMerger{})
	reg.Register("", "", "application/json", JSONSumMerger{})
	reg.Register("", "/special", "application/json", FirstSuccessMerger{})

	selected := reg.Select(http.MethodPost, "/special/path", "application/json")
	assert.IsType(t, FirstSuccessMerger{}, selected)
}
