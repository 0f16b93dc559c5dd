// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/log"
)

// Classifier recognizes the ICMP diagnostics a router or the destination
// sends back for a probe. It is stateless apart from the framing of the
// adapter it reads from.
type Classifier struct {
	framing Framing
}

// NewClassifier returns a classifier for frames captured with the given framing
func NewClassifier(framing Framing) Classifier {
	return Classifier{framing: framing}
}

// IsRelevantICMP reports whether an ICMPv4 type is a probe diagnostic
func IsRelevantICMP(typ uint8) bool {
	return typ == layers.ICMPv4TypeTimeExceeded || typ == layers.ICMPv4TypeDestinationUnreachable
}

// Classify returns the source of the outer IPv4 header when frame is an ICMP
// time-exceeded or destination-unreachable message. Every other frame,
// including truncated or malformed ones, is rejected with ok=false.
func (c Classifier) Classify(frame []byte) (addr netip.Addr, ok bool) {
	ipBytes, err := stripLinkHeader(frame, c.framing)
	if err != nil {
		log.TraceFunc(func() string { return "classifier: " + err.Error() })
		return netip.Addr{}, false
	}
	if ipBytes == nil {
		return netip.Addr{}, false
	}

	var ip4 layers.IPv4
	if err := ip4.DecodeFromBytes(ipBytes, gopacket.NilDecodeFeedback); err != nil {
		log.TraceFunc(func() string { return "classifier: failed to decode IPv4: " + err.Error() })
		return netip.Addr{}, false
	}
	if ip4.Version != 4 || ip4.Protocol != layers.IPProtocolICMPv4 {
		return netip.Addr{}, false
	}
	// a non-first fragment carries no ICMP header
	if ip4.FragOffset != 0 {
		return netip.Addr{}, false
	}

	var icmp4 layers.ICMPv4
	if err := icmp4.DecodeFromBytes(ip4.Payload, gopacket.NilDecodeFeedback); err != nil {
		log.TraceFunc(func() string { return "classifier: failed to decode ICMPv4: " + err.Error() })
		return netip.Addr{}, false
	}
	if !IsRelevantICMP(icmp4.TypeCode.Type()) {
		return netip.Addr{}, false
	}

	return common.UnmappedAddrFromSlice(ip4.SrcIP)
}
