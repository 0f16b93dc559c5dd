// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

//go:build linux

// Package testutils builds throwaway network topologies out of namespaces and
// veth pairs so that probes can cross a real kernel router in tests
package testutils

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// WithNS executes the given function in the given network namespace, and then
// switches back to the previous namespace.
func WithNS(ns netns.NsHandle, fn func() error) error {
	if ns == netns.None() {
		return fn()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	prevNS, err := netns.Get()
	if err != nil {
		return err
	}
	defer prevNS.Close()

	if ns.Equal(prevNS) {
		return fn()
	}

	if err := netns.Set(ns); err != nil {
		return err
	}

	fnErr := fn()
	nsErr := netns.Set(prevNS)
	if fnErr != nil {
		return fnErr
	}
	return nsErr
}

// NewNS creates an unnamed network namespace without staying in it. The
// namespace lives as long as the returned handle stays open.
func NewNS() (netns.NsHandle, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	prevNS, err := netns.Get()
	if err != nil {
		return netns.None(), err
	}
	defer prevNS.Close()

	ns, err := netns.New()
	if err != nil {
		return netns.None(), fmt.Errorf("create namespace: %w", err)
	}
	if err := netns.Set(prevNS); err != nil {
		ns.Close()
		return netns.None(), err
	}
	return ns, nil
}

// Endpoint is one end of a veth pair
type Endpoint struct {
	NS   netns.NsHandle
	Name string
	// CIDR is assigned to the link, e.g. 10.0.0.1/24
	CIDR string
}

// ConnectVeth creates a veth pair in the current namespace, moves each end
// into its endpoint's namespace, then addresses it and brings it up
func ConnectVeth(a, b Endpoint) error {
	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: a.Name},
		PeerName:  b.Name,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return fmt.Errorf("add veth %s/%s: %w", a.Name, b.Name, err)
	}
	for _, ep := range []Endpoint{a, b} {
		link, err := netlink.LinkByName(ep.Name)
		if err != nil {
			return err
		}
		if err := netlink.LinkSetNsFd(link, int(ep.NS)); err != nil {
			return fmt.Errorf("move %s: %w", ep.Name, err)
		}
		if err := WithNS(ep.NS, func() error { return setUp(ep.Name, ep.CIDR) }); err != nil {
			return err
		}
	}
	return nil
}

// LinkUp brings an existing link up, typically the namespace's loopback
func LinkUp(ns netns.NsHandle, name string) error {
	return WithNS(ns, func() error { return setUp(name, "") })
}

func setUp(name, cidr string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return err
	}
	if cidr != "" {
		addr, err := netlink.ParseAddr(cidr)
		if err != nil {
			return err
		}
		if err := netlink.AddrAdd(link, addr); err != nil {
			return fmt.Errorf("address %s: %w", name, err)
		}
	}
	return netlink.LinkSetUp(link)
}

// AddDefaultRoute points the namespace's default route at gw
func AddDefaultRoute(ns netns.NsHandle, gw string) error {
	ip := net.ParseIP(gw)
	if ip == nil {
		return fmt.Errorf("invalid gateway %q", gw)
	}
	return WithNS(ns, func() error {
		return netlink.RouteAdd(&netlink.Route{Gw: ip})
	})
}

// Sysctl writes a dotted sysctl key (net.ipv4.ip_forward) inside ns
func Sysctl(ns netns.NsHandle, key, value string) error {
	path := filepath.Join("/proc/sys", strings.ReplaceAll(key, ".", "/"))
	return WithNS(ns, func() error {
		return os.WriteFile(path, []byte(value), 0o644)
	})
}
