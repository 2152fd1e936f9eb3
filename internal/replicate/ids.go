package replicate

import "github.com/google/uuid"

// RequestID uniquely identifies one cluster request for the life of that
// request: from the header propagated to every NodeRequest, through the
// RequestRegistry entry, to the final Consume().
type RequestID string

// NewRequestID generates a fresh RequestID. The replicator only calls this
// when the caller supplied neither an explicit RequestID nor an
// X-Request-Transaction-Id header.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

// newAttemptID generates the secondary per-attempt identifier stamped in
// the X-Request-Id header on every outbound NodeRequest.
func newAttemptID() string {
	return uuid.NewString()
}
