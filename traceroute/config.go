// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/iface"
	"github.com/DataDog/datalink-traceroute/packets"
)

// Config is fixed for the lifetime of a Session
type Config struct {
	// Destination is the IPv4 address being traced
	Destination netip.Addr
	// DestinationMAC is the next-hop link address every frame is sent to,
	// whatever its TTL
	DestinationMAC net.HardwareAddr
	// Port is the UDP/TCP destination port, unused by ICMP
	Port     uint16
	Protocol common.Protocol
	// FirstTTL and MaxHops bound the TTLs probed, both inclusive
	FirstTTL      int
	MaxHops       int
	QueriesPerHop int
	// Timeout applies to each query separately
	Timeout time.Duration
	// FrameSize is the total link-layer length of every probe
	FrameSize int
	Interface iface.Descriptor
}

// DefaultConfig fills everything but the destination and interface with the
// usual traceroute defaults
func DefaultConfig(dst netip.Addr, dstMAC net.HardwareAddr, ifc iface.Descriptor) Config {
	return Config{
		Destination:    dst,
		DestinationMAC: dstMAC,
		Port:           common.DefaultPort,
		Protocol:       common.ProtocolUDP,
		FirstTTL:       common.DefaultFirstTTL,
		MaxHops:        common.DefaultMaxHops,
		QueriesPerHop:  common.DefaultQueriesPerHop,
		Timeout:        common.DefaultQueryTimeout,
		FrameSize:      common.DefaultFrameSize,
		Interface:      ifc,
	}
}

// ConfigError is returned for any Config that cannot start a session
type ConfigError struct {
	Field  string
	Value  any
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// MaxHopCount is how many hops a session with this config can produce at
// most
func (c Config) MaxHopCount() int {
	return c.MaxHops - c.FirstTTL + 1
}

// Validate reports the first problem that would make the config unusable.
// It never touches the network.
func (c Config) Validate() error {
	if !c.Destination.IsValid() || !c.Destination.Unmap().Is4() {
		return &ConfigError{Field: "destination", Value: c.Destination, Reason: "must be an IPv4 address"}
	}
	if len(c.DestinationMAC) != 6 {
		return &ConfigError{Field: "destination MAC", Value: c.DestinationMAC, Reason: "must be a 6 byte Ethernet address"}
	}
	if !c.Protocol.Valid() {
		return &ConfigError{Field: "protocol", Value: c.Protocol, Reason: "must be icmp, udp or tcp"}
	}
	if c.FirstTTL < common.MinTTLBound || c.FirstTTL > common.MaxTTLBound {
		return &ConfigError{Field: "first TTL", Value: c.FirstTTL, Reason: fmt.Sprintf("must be between %d and %d", common.MinTTLBound, common.MaxTTLBound)}
	}
	if c.MaxHops < common.MinTTLBound || c.MaxHops > common.MaxTTLBound {
		return &ConfigError{Field: "max hops", Value: c.MaxHops, Reason: fmt.Sprintf("must be between %d and %d", common.MinTTLBound, common.MaxTTLBound)}
	}
	if c.MaxHops < c.FirstTTL {
		return &ConfigError{Field: "max hops", Value: c.MaxHops, Reason: fmt.Sprintf("must not be lower than the first TTL %d", c.FirstTTL)}
	}
	if c.QueriesPerHop < 1 {
		return &ConfigError{Field: "queries per hop", Value: c.QueriesPerHop, Reason: "must be at least 1"}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Field: "timeout", Value: c.Timeout, Reason: "must be positive"}
	}
	if err := packets.ValidateFrameSize(c.Protocol, c.FrameSize); err != nil {
		return &ConfigError{Field: "frame size", Value: c.FrameSize, Reason: "too small or too large for the protocol headers", Err: err}
	}
	if c.FrameSize < common.MinFrameSizeBound || c.FrameSize > common.MaxFrameSizeBound {
		return &ConfigError{Field: "frame size", Value: c.FrameSize, Reason: fmt.Sprintf("must be between %d and %d", common.MinFrameSizeBound, common.MaxFrameSizeBound)}
	}
	if !c.Interface.HasEthernetMAC() {
		return &ConfigError{Field: "interface", Value: c.Interface.Name, Reason: "has no Ethernet hardware address"}
	}
	if _, err := c.Interface.SourceIPv4(); err != nil {
		return &ConfigError{Field: "interface", Value: c.Interface.Name, Reason: "has no IPv4 address", Err: err}
	}
	return nil
}
