// Package edge implements the coordinator's HTTP front door: the concrete
// Caller that turns /register, /nodes, /replicate, and /replicate/{id}
// requests into calls against internal/cluster and internal/replicate.
// cmd/coordinator wires this package behind an http.Server; test/integration
// imports it directly to drive the whole stack without a subprocess.
package edge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/dreamware/clusterd/internal/cluster"
	"github.com/dreamware/clusterd/internal/replicate"
)

// CoordinatorServer holds the HTTP handlers' shared dependencies.
type CoordinatorServer struct {
	Directory  *cluster.ConnectionTracker
	Replicator *replicate.Replicator
}

// NewCoordinatorServer wraps directory and replicator for use behind an
// http.ServeMux.
func NewCoordinatorServer(directory *cluster.ConnectionTracker, replicator *replicate.Replicator) *CoordinatorServer {
	return &CoordinatorServer{Directory: directory, Replicator: replicator}
}

// Register installs every route this server answers onto mux.
func (s *CoordinatorServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/nodes", s.handleListNodes)
	mux.HandleFunc("/replicate", s.handleReplicateSubmit)
	mux.HandleFunc("/replicate/", s.handleReplicateGet)
}

// handleRegister processes POST /register: {"id":"node-1","host":"10.0.0.2","port":9001}.
func (s *CoordinatorServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID   string `json:"id"`
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Host == "" || req.Port == 0 {
		http.Error(w, "id, host, and port are required", http.StatusBadRequest)
		return
	}

	s.Directory.Register(cluster.NodeDescriptor{ID: cluster.NodeID(req.ID), APIHost: req.Host, APIPort: req.Port})
	log.Printf("registered node %s at %s:%d", req.ID, req.Host, req.Port)
	w.WriteHeader(http.StatusNoContent)
}

// handleListNodes serves GET /nodes: the directory's current membership
// snapshot with connection state.
func (s *CoordinatorServer) handleListNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Directory.Nodes())
}

// replicateSubmitRequest is the POST /replicate body: the request the
// coordinator should fan out cluster-wide.
type replicateSubmitRequest struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Body       string `json:"body"`
	BodyBase64 bool   `json:"body_base64"`
}

// handleReplicateSubmit admits a new cluster-wide request and returns its
// RequestID immediately; the caller polls /replicate/{id} for the result.
func (s *CoordinatorServer) handleReplicateSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req replicateSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	body := []byte(req.Body)
	if req.BodyBase64 {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			http.Error(w, "body is not valid base64", http.StatusBadRequest)
			return
		}
		body = decoded
	}

	// The rounds keep running after this handler returns, so they must not
	// inherit the cancellation of the submitting HTTP request.
	requestID, err := s.Replicator.Replicate(context.WithoutCancel(r.Context()), "", req.Method, req.Path, body, r.Header.Clone())
	if err != nil {
		writeReplicateError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"request_id": string(requestID)})
}

// handleReplicateGet serves GET /replicate/{requestID}: 202 while the
// request is still in flight, the merged result once it completes.
func (s *CoordinatorServer) handleReplicateGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := replicate.RequestID(strings.TrimPrefix(r.URL.Path, "/replicate/"))
	if requestID == "" {
		http.Error(w, "missing request id", http.StatusBadRequest)
		return
	}

	agg, err := s.Replicator.Get(requestID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if !agg.IsComplete() {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	merged, err := agg.Consume()
	if err != nil {
		writeReplicateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(merged.Status)
	_, _ = w.Write(merged.Body)
}

// writeReplicateError maps a Replicator error to the HTTP status a caller
// should see, per the coordinator's error taxonomy.
func writeReplicateError(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *replicate.InvalidArgumentError:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case *replicate.DisconnectedNodeRejection, *replicate.ConnectingNodeRejection:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case *replicate.OverloadedError:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case *replicate.VerificationRejectedError:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
