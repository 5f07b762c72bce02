// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package server exposes traces over HTTP
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/DataDog/datadog-hoptrace/common"
	"github.com/DataDog/datadog-hoptrace/log"
	"github.com/DataDog/datadog-hoptrace/metrics"
	"github.com/DataDog/datadog-hoptrace/result"
	"github.com/DataDog/datadog-hoptrace/traceroute"
)

// DefaultMaxConcurrentTraces is 1 because traces sharing the host see each
// other's ICMP replies
const DefaultMaxConcurrentTraces = 1

const shutdownTimeout = 5 * time.Second

type tracerouteRunner interface {
	RunTraceroute(ctx context.Context, params traceroute.Params) (*result.Results, error)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

// Server is the HTTP server for the traceroute API
type Server struct {
	tr        tracerouteRunner
	sem       *semaphore.Weighted
	registry  *prometheus.Registry
	startTime time.Time
}

// NewServer creates a new HTTP server running at most maxConcurrent traces at a time
func NewServer(maxConcurrent int64) *Server {
	m := metrics.New()
	return newServer(traceroute.NewTraceroute(traceroute.WithMetrics(m)), metrics.NewRegistry(m), maxConcurrent)
}

func newServer(tr tracerouteRunner, registry *prometheus.Registry, maxConcurrent int64) *Server {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrentTraces
	}
	return &Server{
		tr:        tr,
		sem:       semaphore.NewWeighted(maxConcurrent),
		registry:  registry,
		startTime: time.Now(),
	}
}

// Handler routes the API endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/traceroute", s.TracerouteHandler)
	mux.HandleFunc("/health", s.HealthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// TracerouteHandler handles GET /traceroute requests
func (s *Server) TracerouteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params, err := parseTracerouteParams(r.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		writeError(w, fmt.Errorf("gave up waiting for a running trace to finish: %w", err))
		return
	}
	defer s.sem.Release(1)

	log.Debugf("tracing %s over %s", params.Hostname, params.Protocol)
	results, err := s.tr.RunTraceroute(r.Context(), params)
	if err != nil {
		writeTraceError(w, err, results)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		log.Debugf("failed to encode response: %s", err)
	}
}

// HealthHandler handles GET and HEAD /health requests
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting HTTP server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// parseTracerouteParams extracts the trace parameters from the query string.
// Range checks are left to traceroute.Params.Validate.
func parseTracerouteParams(u *url.URL) (traceroute.Params, error) {
	query := u.Query()

	hostname := query.Get("target")
	if hostname == "" {
		return traceroute.Params{}, &traceroute.InvalidParamsError{Field: "target", Err: errors.New("missing required parameter")}
	}

	params := traceroute.NewParams(hostname)
	params.Protocol = common.Protocol(getStringParam(query, "protocol", string(params.Protocol)))

	var err error
	if params.Port, err = getIntParam(query, "port", params.Port); err != nil {
		return traceroute.Params{}, err
	}
	if params.MaxTTL, err = getIntParam(query, "max-hops", params.MaxTTL); err != nil {
		return traceroute.Params{}, err
	}
	timeoutMs, err := getIntParam(query, "timeout", int(params.Timeout.Milliseconds()))
	if err != nil {
		return traceroute.Params{}, err
	}
	params.Timeout = time.Duration(timeoutMs) * time.Millisecond
	if params.ProbesPerHop, err = getIntParam(query, "queries", params.ProbesPerHop); err != nil {
		return traceroute.Params{}, err
	}
	if params.MaxConsecutiveTimeouts, err = getIntParam(query, "max-consecutive-timeouts", params.MaxConsecutiveTimeouts); err != nil {
		return traceroute.Params{}, err
	}
	if params.ReverseDns, err = getBoolParam(query, "reverse-dns", params.ReverseDns); err != nil {
		return traceroute.Params{}, err
	}
	if params.CollectSourcePublicIP, err = getBoolParam(query, "source-public-ip", params.CollectSourcePublicIP); err != nil {
		return traceroute.Params{}, err
	}
	return params, params.Validate()
}
