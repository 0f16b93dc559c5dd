// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package telemetry holds the prometheus collectors fed by the hop engine
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "datalink_traceroute"

// Metrics counts probes and hops per protocol. A nil *Metrics records
// nothing.
type Metrics struct {
	probes  *prometheus.CounterVec
	replies *prometheus.CounterVec
	hops    *prometheus.CounterVec
	rtt     *prometheus.HistogramVec
	runs    *prometheus.CounterVec
}

// NewMetrics initializes the collectors, unregistered
func NewMetrics() *Metrics {
	return &Metrics{
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_sent_total",
				Help:      "Number of probe frames sent.",
			},
			[]string{"protocol"},
		),
		replies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_outcomes_total",
				Help:      "Probe outcomes, either reply or timeout.",
			},
			[]string{"protocol", "outcome"},
		),
		hops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hops_total",
				Help:      "Number of hops produced.",
			},
			[]string{"protocol"},
		),
		rtt: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "probe_rtt_seconds",
				Help:      "Round trip time of answered probes in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"protocol"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Traceroute runs served, by result code.",
			},
			[]string{"code"},
		),
	}
}

// Collectors returns all metric collectors
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.probes, m.replies, m.hops, m.rtt, m.runs}
}

// NewRegistry returns a registry holding the runtime collectors and m's
func NewRegistry(m *Metrics) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry.MustRegister(m.Collectors()...)
	return registry
}

func (m *Metrics) ProbeSent(protocol string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(protocol).Inc()
}

func (m *Metrics) ProbeAnswered(protocol string, rtt time.Duration) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(protocol, "reply").Inc()
	m.rtt.WithLabelValues(protocol).Observe(rtt.Seconds())
}

func (m *Metrics) ProbeTimedOut(protocol string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(protocol, "timeout").Inc()
}

func (m *Metrics) HopCompleted(protocol string) {
	if m == nil {
		return
	}
	m.hops.WithLabelValues(protocol).Inc()
}

// RunCompleted counts a finished run. code is "OK" or an error code.
func (m *Metrics) RunCompleted(code string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(code).Inc()
}
