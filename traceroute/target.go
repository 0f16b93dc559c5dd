// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// lookupNetIP is replaced in tests
var lookupNetIP = net.DefaultResolver.LookupNetIP

// ParseTarget resolves raw ("host", "host:port", "1.2.3.4" or "1.2.3.4:port")
// into an IPv4 address and port. Hostnames are resolved through DNS, keeping
// the first IPv4 answer.
func ParseTarget(ctx context.Context, raw string, defaultPort uint16) (netip.Addr, uint16, error) {
	if !hasPort(raw) {
		unwrappedHost := strings.Trim(raw, "[]")
		raw = net.JoinHostPort(unwrappedHost, strconv.Itoa(int(defaultPort)))
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return netip.Addr{}, 0, &InvalidTargetError{Err: fmt.Errorf("invalid address: %w", err)}
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return netip.Addr{}, 0, &InvalidTargetError{Err: fmt.Errorf("invalid port %q: %w", portStr, err)}
	}

	ip, err := netip.ParseAddr(host)
	if err == nil {
		ip = ip.Unmap()
		if !ip.Is4() {
			return netip.Addr{}, 0, &InvalidTargetError{Err: fmt.Errorf("%s is not an IPv4 address", ip)}
		}
		return ip, uint16(port), nil
	}

	// Not an IP, resolve it
	ips, err := lookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, 0, &DNSError{Host: host, Err: err}
	}
	for _, candidate := range ips {
		if candidate.Unmap().Is4() {
			return candidate.Unmap(), uint16(port), nil
		}
	}
	return netip.Addr{}, 0, &DNSError{Host: host, Err: fmt.Errorf("no IPv4 address found")}
}

// hasPort tells "host:port" and "[v6]:port" apart from bare hosts and bare
// IPv6 literals
func hasPort(s string) bool {
	if strings.HasPrefix(s, "[") {
		return strings.Contains(s, "]:")
	}
	return strings.Count(s, ":") == 1
}
