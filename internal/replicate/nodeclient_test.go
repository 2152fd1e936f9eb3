package replicate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeClientDoReturnsRealStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-transaction", r.Header.Get(HeaderTransactionID))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewNodeClient(time.Second, time.Second)
	target, err := url.Parse(srv.URL + "/items")
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set(HeaderTransactionID, "req-transaction")

	resp := client.Do(context.Background(), NodeRequest{
		NodeID:    "node-1",
		Method:    http.MethodPost,
		TargetURI: target,
		Headers:   headers,
	})

	require.NoError(t, resp.Err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	body, _ := io.ReadAll(resp.Body)
	resp.CloseBody()
	assert.Equal(t, "ok", string(body))
	assert.True(t, resp.IsSuccess())
}

func TestNodeClientDoFoldsTransportFailureIntoResponse(t *testing.T) {
	client := NewNodeClient(10*time.Millisecond, 10*time.Millisecond)
	target, err := url.Parse("http://127.0.0.1:1/unreachable")
	require.NoError(t, err)

	resp := client.Do(context.Background(), NodeRequest{NodeID: "node-1", Method: http.MethodGet, TargetURI: target})

	assert.True(t, resp.IsError())
	require.Error(t, resp.Err)
	assert.IsType(t, &NodeTransportError{}, resp.Err)
	assert.Equal(t, StatusError, resp.Status)
}

func TestNodeClientDoRejectsNilTargetURI(t *testing.T) {
	client := NewNodeClient(time.Second, time.Second)
	resp := client.Do(context.Background(), NodeRequest{NodeID: "node-1", Method: http.MethodGet})
	assert.True(t, resp.IsError())
	assert.ErrorIs(t, resp.Err, errMalformedURI)
}

func TestIsSideEffectFree(t *testing.T) {
	assert.True(t, IsSideEffectFree(http.MethodGet))
	assert.True(t, IsSideEffectFree(http.MethodDelete))
	assert.False(t, IsSideEffectFree(http.MethodPost))
}

func TestApplyHeadersDefaultsContentType(t *testing.T) {
	httpReq, err := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	require.NoError(t, err)
	applyHeaders(httpReq, NodeRequest{Body: []byte("x=1"), Headers: http.Header{}})
	assert.Equal(t, DefaultContentType, httpReq.Header.Get("Content-Type"))
}
