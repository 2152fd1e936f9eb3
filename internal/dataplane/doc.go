// Package dataplane implements the node-side half of the replicated cluster:
// a pluggable key-value Store plus a Service that understands the
// coordinator's two-phase verify/apply wire protocol.
//
// # Architecture
//
//	Coordinator (internal/replicate)
//	        │  X-Verify-Intent: 150-NodeContinue
//	        ▼
//	┌─────────────────────────────┐
//	│          Service            │  answers 150/417 during verification,
//	│  (method/path → Store call) │  performs the real Store call on apply
//	└─────────────────────────────┘
//	        │
//	        ▼
//	┌─────────────────────────────┐
//	│            Store            │
//	│        (MemoryStore)        │
//	└─────────────────────────────┘
//
// # Verification
//
// A node never partially commits: on a verification-round request, Service
// checks that the operation is structurally valid (non-empty key, decodable
// body) without mutating the Store, and answers StatusVerifyAccept or
// StatusVerifyReject accordingly. The apply round that follows performs the
// mutation for real and is expected to succeed, since verification already
// ruled out the failure modes the node can detect locally.
package dataplane
