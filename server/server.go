// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

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

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/log"
	"github.com/DataDog/datalink-traceroute/result"
	"github.com/DataDog/datalink-traceroute/runner"
	"github.com/DataDog/datalink-traceroute/telemetry"
	"github.com/DataDog/datalink-traceroute/traceroute"
)

type tracerouteRunner interface {
	RunTraceroute(ctx context.Context, params runner.TracerouteParams) (*result.Results, error)
}

// Server is the HTTP server for the traceroute API
type Server struct {
	tr        tracerouteRunner
	metrics   *telemetry.Metrics
	registry  *prometheus.Registry
	startedAt time.Time
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

// NewServer creates a new HTTP server whose runs feed a fresh metrics registry
func NewServer() *Server {
	metrics := telemetry.NewMetrics()
	return &Server{
		tr:        runner.NewRunner(runner.WithMetrics(metrics)),
		metrics:   metrics,
		registry:  telemetry.NewRegistry(metrics),
		startedAt: time.Now(),
	}
}

// TracerouteHandler handles GET /traceroute requests
func (s *Server) TracerouteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params, err := parseTracerouteParams(r.URL)
	if err != nil {
		s.writeError(w, &traceroute.TracerouteError{
			Code:    traceroute.ErrCodeInvalidRequest,
			Message: fmt.Sprintf("Invalid parameters: %v", err),
			Err:     err,
		})
		return
	}

	results, err := s.tr.RunTraceroute(r.Context(), params)
	if err != nil {
		log.Debugf("traceroute to %s failed: %s", params.Hostname, err)
		s.writeError(w, traceroute.ClassifyError(err))
		return
	}
	s.metrics.RunCompleted("OK")

	writeJSON(w, http.StatusOK, results)
}

// HealthHandler handles GET and HEAD /health requests
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		now := time.Now()
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "healthy",
			Timestamp: now.UTC().Format(time.RFC3339),
			Uptime:    now.Sub(s.startedAt).Round(time.Second).String(),
		})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Handler routes /traceroute, /health and /metrics
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/traceroute", s.TracerouteHandler)
	mux.HandleFunc("/health", s.HealthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Debugf("Starting HTTP server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) writeError(w http.ResponseWriter, te *traceroute.TracerouteError) {
	s.metrics.RunCompleted(string(te.Code))
	status := http.StatusInternalServerError
	if te.Code == traceroute.ErrCodeInvalidRequest {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, traceroute.ErrorResponse{Code: te.Code, Message: te.Message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debugf("failed to encode response: %s", err)
	}
}

// parseTracerouteParams extracts the query parameters. Malformed optional
// values fall back to their defaults.
func parseTracerouteParams(u *url.URL) (runner.TracerouteParams, error) {
	query := u.Query()

	hostname := query.Get("target")
	if hostname == "" {
		return runner.TracerouteParams{}, fmt.Errorf("missing required parameter: target")
	}

	params := runner.DefaultParams(hostname)
	params.Protocol = getStringParam(query, "protocol", common.DefaultProtocol)
	params.Port = getIntParam(query, "port", 0)
	params.Interface = getStringParam(query, "interface", "")
	params.DestinationMAC = getStringParam(query, "dst-mac", "")
	params.MinTTL = getIntParam(query, "first-ttl", common.DefaultFirstTTL)
	params.MaxTTL = getIntParam(query, "max-ttl", common.DefaultMaxHops)
	params.Queries = getIntParam(query, "queries", common.DefaultQueriesPerHop)
	params.Timeout = time.Duration(getIntParam(query, "timeout", int(common.DefaultQueryTimeout.Milliseconds()))) * time.Millisecond
	params.FrameSize = getIntParam(query, "frame-size", common.DefaultFrameSize)
	params.ReverseDns = getBoolParam(query, "reverse-dns", common.DefaultReverseDns)
	params.CollectSourcePublicIP = getBoolParam(query, "source-public-ip", common.DefaultCollectPublicIP)
	params.Tags = query["tag"]

	return params, nil
}
