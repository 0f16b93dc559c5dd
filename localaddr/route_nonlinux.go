// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build !linux

package localaddr

import (
	"fmt"
	"net"
	"net/netip"
)

func lookupOutboundRoute(dst netip.Addr) (Route, error) {
	return Route{}, fmt.Errorf("netlink route lookup unsupported on this platform")
}

// NextHopMAC needs the neighbor table, which is only read on Linux. The
// destination MAC has to be given explicitly elsewhere.
func NextHopMAC(route Route, dst netip.Addr) (net.HardwareAddr, error) {
	return nil, fmt.Errorf("%w: automatic lookup unsupported on this platform", ErrNoNeighbor)
}
