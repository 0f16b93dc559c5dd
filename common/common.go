// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package common contains the vocabulary shared by the frame builder, the
// capture channel and the hop engine
package common

import (
	"errors"
	"net/netip"
	"time"
)

const (
	DefaultPort              = 33434
	DefaultMaxHops           = 30
	DefaultFirstTTL          = 1
	DefaultQueriesPerHop     = 3
	DefaultQueryTimeout      = 1000 * time.Millisecond
	DefaultFrameSize         = 80
	DefaultProtocol          = "udp"
	DefaultReverseDns        = false
	DefaultCollectPublicIP   = false
	MinFrameSizeBound        = 80
	MaxFrameSizeBound        = 1500
	MinTTLBound              = 1
	MaxTTLBound              = 254
	NoReplyAddr              = "*"
	DefaultServerAddr        = ":3765"
	DefaultReverseDnsWorkers = 8
)

// ReceiveProbeNoPktError is returned by a packet source when nothing arrived
// before its read deadline
type ReceiveProbeNoPktError struct {
	Err error
}

func (e *ReceiveProbeNoPktError) Error() string {
	return "ReceiveProbe() didn't find any new packets: " + e.Err.Error()
}

func (e *ReceiveProbeNoPktError) Unwrap() error {
	return e.Err
}

// IsNoPacketErr reports whether err means "deadline elapsed, keep going"
func IsNoPacketErr(err error) bool {
	var noPkt *ReceiveProbeNoPktError
	return errors.As(err, &noPkt)
}

// UnmappedAddrFromSlice is the same as netip.AddrFromSlice but it also gets rid of mapped ipv6 addresses.
func UnmappedAddrFromSlice(slice []byte) (netip.Addr, bool) {
	addr, ok := netip.AddrFromSlice(slice)
	return addr.Unmap(), ok
}
