package replicate

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// NodeClient issues one outbound HTTP call to one node and never lets a
// transport failure escape as a Go error: every failure mode (network,
// TLS, timeout, malformed URI) is folded into a NodeResponse with Err set,
// so a worker goroutine can always funnel its result straight into
// aggregator.Add.
//
// A NodeClient is stateless beyond its shared *http.Client and is safe for
// concurrent use by every worker in the pool.
type NodeClient struct {
	httpClient     *http.Client
	connectTimeout time.Duration
	readTimeout    time.Duration
}

// NewNodeClient builds a NodeClient whose dialer enforces connectTimeout and
// whose overall per-call budget is connectTimeout+readTimeout.
func NewNodeClient(connectTimeout, readTimeout time.Duration) *NodeClient {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &NodeClient{
		httpClient:     &http.Client{Transport: transport},
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
	}
}

// Do executes req and always returns a NodeResponse, regardless of outcome.
func (c *NodeClient) Do(ctx context.Context, req NodeRequest) NodeResponse {
	started := time.Now()

	budget := c.connectTimeout + c.readTimeout
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	resp := NodeResponse{
		NodeID:    req.NodeID,
		Method:    req.Method,
		StartedAt: started,
	}

	if req.TargetURI == nil {
		resp.Status = StatusError
		resp.Err = &NodeTransportError{NodeID: req.NodeID, Cause: errMalformedURI}
		resp.Duration = time.Since(started)
		return resp
	}
	resp.URI = req.TargetURI.String()

	var bodyReader *bytes.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.TargetURI.String(), bodyReader)
	if err != nil {
		resp.Status = StatusError
		resp.Err = &NodeTransportError{NodeID: req.NodeID, Cause: err}
		resp.Duration = time.Since(started)
		return resp
	}
	applyHeaders(httpReq, req)

	httpResp, err := c.httpClient.Do(httpReq)
	resp.Duration = time.Since(started)
	if err != nil {
		resp.Status = StatusError
		resp.Err = &NodeTransportError{NodeID: req.NodeID, Cause: err}
		return resp
	}

	resp.Status = httpResp.StatusCode
	resp.Headers = httpResp.Header
	resp.Body = httpResp.Body
	return resp
}

// applyHeaders copies req.Headers onto httpReq and fills in the default
// Content-Type for body-bearing requests that didn't specify one.
func applyHeaders(httpReq *http.Request, req NodeRequest) {
	for k, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", DefaultContentType)
	}
}

// sideEffectFreeMethods are the verbs that carry their parameters in the
// query string rather than the entity body: GET/HEAD/OPTIONS/DELETE.
var sideEffectFreeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodDelete:  true,
}

// IsSideEffectFree reports whether method's parameters belong in the query
// string (true) or the entity body (false).
func IsSideEffectFree(method string) bool {
	return sideEffectFreeMethods[strings.ToUpper(method)]
}

var errMalformedURI = &malformedURIError{}

type malformedURIError struct{}

func (*malformedURIError) Error() string { return "malformed target URI" }
