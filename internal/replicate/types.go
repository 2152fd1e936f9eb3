package replicate

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dreamware/clusterd/internal/cluster"
)

// Wire-level header names, case-insensitive per net/http.Header semantics.
const (
	HeaderTransactionID  = "X-Request-Transaction-Id"
	HeaderRequestID      = "X-Request-Id"
	HeaderVerifyIntent   = "X-Verify-Intent"
	HeaderClusterContext = "X-Cluster-Context"

	// HeaderVerifyStatus carries StatusVerifyAccept out of band on a
	// verification-round response whose real HTTP status is a normal
	// terminal code (200). net/http treats any 1xx status other than 101
	// as a non-terminal informational response and never surfaces it to
	// the client as the answer to the request, so StatusVerifyAccept
	// cannot be written as the literal status line; StatusVerifyReject
	// (417) falls outside the 1xx range and has no such restriction.
	HeaderVerifyStatus = "X-Verify-Status"

	// VerifyIntentValue is the literal value HeaderVerifyIntent carries on
	// verification-round requests.
	VerifyIntentValue = "150-NodeContinue"

	// DefaultContentType is applied to body-bearing requests that arrive
	// without one.
	DefaultContentType = "application/x-www-form-urlencoded"
)

// Sentinel HTTP statuses reused by the verification protocol for in-band
// signalling, and the local sentinel used to mark a NodeResponse that
// carries a transport error instead of a real status.
const (
	StatusVerifyAccept = 150
	StatusVerifyReject = 417
	StatusError        = -1
)

// mutatingMethods is the set of methods StateGuard and Replicator treat as
// requiring cluster-state stability and the two-phase protocol.
var mutatingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// acceptedMethods is the full set of methods Replicate will dispatch.
var acceptedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
}

// IsMutating reports whether method is one of the three mutating verbs
// (POST, PUT, DELETE) per spec.
func IsMutating(method string) bool {
	return mutatingMethods[method]
}

// IsAcceptedMethod reports whether method is one of the six verbs the
// replicator accepts.
func IsAcceptedMethod(method string) bool {
	return acceptedMethods[method]
}

// NodeRequest is one logical call to one node. It is constructed fresh for
// every dispatch (single-phase, verification, or apply) and is destroyed
// once its NodeResponse is produced.
type NodeRequest struct {
	NodeID    cluster.NodeID
	Method    string
	TargetURI *url.URL
	Body      []byte
	Headers   http.Header
	Deadline  time.Time
}

// NodeResponse is the result of one NodeRequest. Exactly one of
// (Status+Body) or Err is meaningful: a transport failure sets Status to
// StatusError and Err to the failure cause; otherwise Status is the real
// HTTP status code the node answered with.
type NodeResponse struct {
	NodeID    cluster.NodeID
	Method    string
	URI       string
	Status    int
	Headers   http.Header
	Body      io.ReadCloser
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// IsError reports whether this response represents a transport-level
// failure rather than a real HTTP answer.
func (r NodeResponse) IsError() bool {
	return r.Err != nil || r.Status == StatusError
}

// IsSuccess reports whether this response is a non-error 2xx status.
func (r NodeResponse) IsSuccess() bool {
	return !r.IsError() && r.Status >= 200 && r.Status < 300
}

// CloseBody closes the response body if present, tolerating a nil body so
// callers can call it unconditionally.
func (r NodeResponse) CloseBody() {
	if r.Body != nil {
		_ = r.Body.Close()
	}
}

// VerifyStatus returns the verification-round sentinel status this
// response represents: the HeaderVerifyStatus header value if the node
// sent one (the StatusVerifyAccept case, relayed out of band since it
// cannot travel as a literal 1xx status line), otherwise the real HTTP
// status (the StatusVerifyReject case, which travels as-is).
func (r NodeResponse) VerifyStatus() int {
	if v := r.Headers.Get(HeaderVerifyStatus); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return r.Status
}
