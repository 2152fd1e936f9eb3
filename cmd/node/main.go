// Package main implements a cluster data-plane node: the worker a
// coordinator fans requests out to. A node answers the verify/apply
// protocol on /kv/{key} and registers itself with the coordinator at
// startup, retrying through its early-boot window.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│                 Node                     │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /health  - Liveness check            │
//	│    /kv/{key} - GET/PUT/POST/DELETE      │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    dataplane.Service - verify/apply     │
//	│    dataplane.MemoryStore - storage      │
//	└─────────────────────────────────────────┘
//
// Required environment:
//   - NODE_ID: Unique identifier for this node
//   - COORDINATOR_ADDR: Base URL of the coordinator
//
// Optional environment:
//   - NODE_LISTEN: Local listen address (default: ":8081")
//   - NODE_ADDR: Public host:port the coordinator should dial (default: "127.0.0.1:8081")
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dreamware/clusterd/internal/cluster"
	"github.com/dreamware/clusterd/internal/dataplane"
)

// logFatal is a package var so tests can stub out the process-terminating
// path.
var logFatal = log.Fatalf

func main() {
	nodeID := mustGetenv("NODE_ID")
	listen := getenv("NODE_LISTEN", ":8081")
	public := getenv("NODE_ADDR", "127.0.0.1:8081")
	coord := mustGetenv("COORDINATOR_ADDR")

	store := dataplane.NewMemoryStore()
	svc := dataplane.NewService(store)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/kv/", svc.ServeKV)

	s := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("node[%s] listening on %s (public %s)", nodeID, listen, public)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	register(context.Background(), coord, nodeID, public)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	log.Println("node stopped")
}

// registerRequest mirrors the coordinator's POST /register body shape.
type registerRequest struct {
	ID   string `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// register announces this node to the coordinator, retrying on failure to
// absorb coordinator startup delays. It is fatal after exhausting its
// attempts, since a node cannot serve cluster traffic it was never routed.
func register(ctx context.Context, coord, id, public string) {
	host, portStr, err := splitHostPort(public)
	if err != nil {
		logFatal("invalid NODE_ADDR %q: %v", public, err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		logFatal("invalid NODE_ADDR port %q: %v", public, err)
		return
	}

	body := registerRequest{ID: id, Host: host, Port: port}
	var lastErr error
	for i := 0; i < 10; i++ {
		lastErr = cluster.PostJSON(ctx, coord+"/register", body, nil)
		if lastErr == nil {
			log.Printf("registered with coordinator @ %s", coord)
			return
		}
		log.Printf("register retry %d: %v", i+1, lastErr)
		time.Sleep(400 * time.Millisecond)
	}
	logFatal("failed to register with coordinator: %v", lastErr)
}

func splitHostPort(addr string) (host, port string, err error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", strconv.ErrSyntax
	}
	return addr[:idx], addr[idx+1:], nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustGetenv(k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	logFatal("missing env %s", k)
	return ""
}
