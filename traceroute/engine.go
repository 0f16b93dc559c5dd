// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/DataDog/datalink-traceroute/log"
	"github.com/DataDog/datalink-traceroute/packets"
	"github.com/DataDog/datalink-traceroute/result"
	"github.com/DataDog/datalink-traceroute/telemetry"
)

// probeChannel is the part of *packets.Channel the engine drives
type probeChannel interface {
	Send(frame []byte) error
	ReceiveWithTimeout(deadline time.Time) (netip.Addr, bool, error)
	Close() error
}

// hopEngine walks the TTLs one hop per advance call. Its state is the next
// TTL to probe plus a sticky done flag.
type hopEngine struct {
	cfg      Config
	dst      netip.Addr
	builder  *packets.FrameBuilder
	channel  probeChannel
	metrics  *telemetry.Metrics
	protocol string

	ttl  int
	done bool
	err  error

	now func() time.Time
}

func newHopEngine(cfg Config, builder *packets.FrameBuilder, channel probeChannel, metrics *telemetry.Metrics) *hopEngine {
	return &hopEngine{
		cfg:      cfg,
		dst:      cfg.Destination.Unmap(),
		builder:  builder,
		channel:  channel,
		metrics:  metrics,
		protocol: cfg.Protocol.String(),
		ttl:      cfg.FirstTTL,
		now:      time.Now,
	}
}

// advance probes the current TTL QueriesPerHop times and returns the hop.
// It returns false once the walk is over: the destination answered, the last
// TTL was probed, or the channel failed (see err).
func (e *hopEngine) advance() (result.TracerouteHop, bool) {
	if e.done {
		return result.TracerouteHop{}, false
	}

	ttl := e.ttl
	hop := result.TracerouteHop{
		TTL:          uint8(ttl),
		QueryResults: make([]result.TracerouteQueryResult, 0, e.cfg.QueriesPerHop),
	}
	// checked against every responder, duplicates included
	reachedDestination := false
	for i := 0; i < e.cfg.QueriesPerHop; i++ {
		addr, rtt, ok, err := e.probe(uint8(ttl))
		if err != nil {
			e.done = true
			e.err = fmt.Errorf("probe %d at TTL %d failed: %w", i+1, ttl, err)
			log.Debugf("stopping traceroute: %s", e.err)
			return result.TracerouteHop{}, false
		}
		if !ok {
			log.Tracef("ttl=%d query=%d: timeout", ttl, i+1)
			e.metrics.ProbeTimedOut(e.protocol)
			hop.QueryResults = append(hop.QueryResults, result.Timeout())
			continue
		}

		log.Tracef("ttl=%d query=%d: reply from %s in %s", ttl, i+1, addr, rtt)
		e.metrics.ProbeAnswered(e.protocol, rtt)
		if addr == e.dst {
			reachedDestination = true
		}
		if hop.HasAddr(addr.String()) {
			continue
		}
		hop.QueryResults = append(hop.QueryResults, result.TracerouteQueryResult{RTT: rtt, Addr: addr.String()})
	}

	e.ttl++
	if reachedDestination || ttl >= e.cfg.MaxHops {
		e.done = true
	}
	e.metrics.HopCompleted(e.protocol)
	log.Debugf("hop %s", hop)
	return hop, true
}

// probe sends one frame and waits for its diagnostic until the query's own
// deadline
func (e *hopEngine) probe(ttl uint8) (addr netip.Addr, rtt time.Duration, ok bool, err error) {
	frame, err := e.builder.Build(e.cfg.DestinationMAC, e.dst, ttl, e.cfg.Port)
	if err != nil {
		return netip.Addr{}, 0, false, err
	}

	start := e.now()
	if err := e.channel.Send(frame); err != nil {
		return netip.Addr{}, 0, false, err
	}
	e.metrics.ProbeSent(e.protocol)

	addr, ok, err = e.channel.ReceiveWithTimeout(start.Add(e.cfg.Timeout))
	if err != nil || !ok {
		return netip.Addr{}, 0, false, err
	}
	return addr, e.now().Sub(start), true, nil
}
