// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package localaddr finds which interface and next-hop link address frames to
// a destination have to go through
package localaddr

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// discardPort is where datagrams are sent to make the kernel resolve a
// neighbor
const discardPort = 9

// ErrNoNeighbor is returned when the next hop's link address is not known
var ErrNoNeighbor = errors.New("next hop link address is not in the neighbor table")

// Route is the kernel's choice for reaching a destination
type Route struct {
	IfIndex int
	// Gateway is invalid when the destination is on-link
	Gateway netip.Addr
	PrefSrc netip.Addr
}

// NextHop is the address whose link address frames must carry
func (r Route) NextHop(dst netip.Addr) netip.Addr {
	if r.Gateway.IsValid() && !r.Gateway.IsUnspecified() {
		return r.Gateway
	}
	return dst
}

// LookupRoute returns the route towards dst. It asks the routing table
// directly where the platform allows it, and otherwise falls back to the
// source address the kernel picks for a UDP socket.
func LookupRoute(dst netip.Addr) (Route, error) {
	route, err := lookupOutboundRoute(dst)
	if err == nil {
		return route, nil
	}
	return routeFromDial(dst)
}

// routeFromDial finds the interface owning the local address of a connected
// UDP socket. The gateway stays unknown.
func routeFromDial(dst netip.Addr) (Route, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(dst.String(), strconv.Itoa(discardPort)))
	if err != nil {
		return Route{}, fmt.Errorf("failed to dial %s: %w", dst, err)
	}
	defer conn.Close()

	src, err := localAddrFromConn(dst, conn.LocalAddr())
	if err != nil {
		return Route{}, err
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return Route{}, fmt.Errorf("failed to get interfaces: %w", err)
	}
	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			return Route{}, fmt.Errorf("failed to get addresses of %s: %w", ifi.Name, err)
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if a, ok := netip.AddrFromSlice(ipnet.IP); ok && a.Unmap() == src {
				return Route{IfIndex: ifi.Index, PrefSrc: src}, nil
			}
		}
	}
	return Route{}, fmt.Errorf("no interface owns local address %s", src)
}

// localAddrFromConn returns the source address of a connected socket
func localAddrFromConn(dst netip.Addr, localAddr net.Addr) (netip.Addr, error) {
	localUDPAddr, ok := localAddr.(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, fmt.Errorf("invalid address type for %s: want %T, got %T", localAddr, localUDPAddr, localAddr)
	}
	src := localUDPAddr.AddrPort().Addr().Unmap()

	// On macOS, net.Dial() to a loopback destination may return a non-loopback local address.
	if dst.IsLoopback() && !src.IsLoopback() {
		src = netip.AddrFrom4([4]byte{127, 0, 0, 1})
	}
	return src, nil
}

// primeNeighbor makes the kernel resolve the link address of addr by sending
// it a single datagram
func primeNeighbor(addr netip.Addr) error {
	conn, err := net.Dial("udp", net.JoinHostPort(addr.String(), strconv.Itoa(discardPort)))
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write([]byte{0})
	return err
}
