// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.ProbeSent("udp")
	m.ProbeSent("udp")
	m.ProbeAnswered("udp", 5*time.Millisecond)
	m.ProbeTimedOut("udp")
	m.HopCompleted("udp")
	m.RunCompleted("OK")
	m.RunCompleted("DNS")
	m.RunCompleted("OK")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.probes.WithLabelValues("udp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replies.WithLabelValues("udp", "reply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replies.WithLabelValues("udp", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hops.WithLabelValues("udp")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.probes.WithLabelValues("tcp")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("DNS")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ProbeSent("icmp")
		m.ProbeAnswered("icmp", time.Millisecond)
		m.ProbeTimedOut("icmp")
		m.HopCompleted("icmp")
		m.RunCompleted("OK")
	})
}

func TestNewRegistry(t *testing.T) {
	m := NewMetrics()
	m.ProbeSent("tcp")
	registry := NewRegistry(m)

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["datalink_traceroute_probes_sent_total"])
	assert.True(t, names["go_goroutines"])
}
