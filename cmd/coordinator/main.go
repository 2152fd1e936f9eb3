// Package main implements the cluster coordinator: the HTTP front door that
// admits a request, fans it out to every registered node through the
// two-phase verify/apply protocol, and hands the caller back a merged
// answer.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│              Coordinator                 │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /register       - Node registration  │
//	│    /nodes          - List all nodes     │
//	│    /replicate      - Submit a request   │
//	│    /replicate/{id} - Poll/consume result│
//	│    /metrics        - Prometheus         │
//	│    /health         - Liveness check     │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    edge.CoordinatorServer - HTTP routes │
//	│    replicate.Replicator  - Orchestration│
//	│    cluster.ConnectionTracker - Directory│
//	└─────────────────────────────────────────┘
//
// The HTTP handlers themselves live in internal/edge so they can be
// exercised directly by integration tests without a subprocess; this file
// only builds their dependencies and wires them behind an http.Server.
//
// Configuration is entirely environment-variable driven; see getenv calls
// throughout main for the full list.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreamware/clusterd/internal/cluster"
	"github.com/dreamware/clusterd/internal/edge"
	"github.com/dreamware/clusterd/internal/replicate"
)

func main() {
	addr := getenv("COORDINATOR_ADDR", ":8080")
	healthInterval := durationEnv("HEALTH_CHECK_INTERVAL", 5*time.Second)
	numThreads := intEnv("REPLICATE_NUM_THREADS", replicate.DefaultNumThreads)
	maxConcurrent := intEnv("REPLICATE_MAX_CONCURRENT", replicate.DefaultMaxConcurrent)
	maintenanceInterval := durationEnv("REPLICATE_MAINTENANCE_INTERVAL", replicate.DefaultMaintenanceInterval)
	requestMaxAge := durationEnv("REPLICATE_REQUEST_MAX_AGE", replicate.DefaultRequestMaxAge)

	directory := cluster.NewConnectionTracker(healthInterval)
	eventSink := cluster.NewLogEventSink(log.Default())
	flowTracker := cluster.NewLogFlowStateTracker(log.Default())

	reg := prometheus.NewRegistry()
	metrics := replicate.NewMetrics()
	metrics.MustRegister(reg)

	replicator := replicate.NewReplicator(replicate.Config{
		NumThreads:            numThreads,
		MaxConcurrentRequests: maxConcurrent,
		MaintenanceInterval:   maintenanceInterval,
		RequestMaxAge:         requestMaxAge,
	}, directory, flowTracker, eventSink, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	go directory.Start(ctx)
	replicator.Start(ctx)

	srv := edge.NewCoordinatorServer(directory, replicator)

	mux := http.NewServeMux()
	srv.Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("coordinator listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down...")
	cancel()
	directory.Stop()
	replicator.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("coordinator stopped")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationEnv(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func intEnv(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
