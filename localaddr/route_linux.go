// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build linux

package localaddr

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/netip"
	"time"

	"github.com/vishvananda/netlink"

	"github.com/DataDog/datalink-traceroute/log"
)

type routeGetFunc func(dst net.IP) ([]netlink.Route, error)

type neighListFunc func(linkIndex, family int) ([]netlink.Neigh, error)

var (
	routeGet  routeGetFunc  = netlink.RouteGet
	neighList neighListFunc = netlink.NeighList
	prime                   = primeNeighbor
)

// neighbor resolution polling
var (
	neighAttempts = 10
	neighInterval = 50 * time.Millisecond
)

func lookupOutboundRoute(dst netip.Addr) (Route, error) {
	routes, err := routeGet(dst.AsSlice())
	if err != nil {
		return Route{}, fmt.Errorf("netlink route lookup failed: %w", err)
	}
	for _, r := range routes {
		if r.LinkIndex <= 0 || r.LinkIndex > math.MaxInt32 {
			return Route{}, fmt.Errorf("route to %s has invalid link index %d", dst, r.LinkIndex)
		}
		route := Route{IfIndex: r.LinkIndex}
		if gw, ok := netip.AddrFromSlice(r.Gw); ok {
			route.Gateway = gw.Unmap()
		}
		if src, ok := netip.AddrFromSlice(r.Src); ok {
			route.PrefSrc = src.Unmap()
		}
		return route, nil
	}
	return Route{}, fmt.Errorf("no valid route found for %s", dst)
}

// usableNeigh reports whether the kernel trusts the entry's link address
func usableNeigh(n netlink.Neigh) bool {
	if len(n.HardwareAddr) != 6 {
		return false
	}
	return n.State&(netlink.NUD_INCOMPLETE|netlink.NUD_FAILED) == 0
}

func findNeighbor(ifIndex int, addr netip.Addr) (net.HardwareAddr, error) {
	neighs, err := neighList(ifIndex, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("netlink neighbor lookup failed: %w", err)
	}
	for _, n := range neighs {
		ip, ok := netip.AddrFromSlice(n.IP)
		if !ok || ip.Unmap() != addr || !usableNeigh(n) {
			continue
		}
		return n.HardwareAddr, nil
	}
	return nil, ErrNoNeighbor
}

// NextHopMAC returns the link address of the next hop towards dst on the
// route's interface, triggering ARP resolution when it is not cached yet
func NextHopMAC(route Route, dst netip.Addr) (net.HardwareAddr, error) {
	nextHop := route.NextHop(dst)
	mac, err := findNeighbor(route.IfIndex, nextHop)
	if !errors.Is(err, ErrNoNeighbor) {
		return mac, err
	}

	log.Debugf("%s is not in the neighbor table, resolving it", nextHop)
	if err := prime(nextHop); err != nil {
		return nil, fmt.Errorf("failed to trigger neighbor resolution of %s: %w", nextHop, err)
	}
	for i := 0; i < neighAttempts; i++ {
		time.Sleep(neighInterval)
		mac, err = findNeighbor(route.IfIndex, nextHop)
		if !errors.Is(err, ErrNoNeighbor) {
			return mac, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoNeighbor, nextHop)
}
