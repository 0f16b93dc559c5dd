// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package iface describes the host network adapters a traceroute can be bound to
package iface

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Descriptor identifies a network adapter. It is read-only once built.
type Descriptor struct {
	Index int
	Name  string
	MAC   net.HardwareAddr
	// Addrs holds the IPv4 addresses bound to the adapter
	Addrs []netip.Addr
	Flags net.Flags
}

// NotFoundError is returned when no adapter has the requested name
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no such interface %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// NoIPv4Error is returned when an adapter has no IPv4 address to source probes from
type NoIPv4Error struct {
	Name string
}

func (e *NoIPv4Error) Error() string {
	return fmt.Sprintf("interface %q has no IPv4 address", e.Name)
}

// SourceIPv4 returns the address outgoing probes are sourced from
func (d Descriptor) SourceIPv4() (netip.Addr, error) {
	for _, addr := range d.Addrs {
		if addr.Is4() {
			return addr, nil
		}
	}
	return netip.Addr{}, &NoIPv4Error{Name: d.Name}
}

// HasEthernetMAC reports whether frames on this adapter carry an Ethernet header
func (d Descriptor) HasEthernetMAC() bool {
	return len(d.MAC) == 6
}

func (d Descriptor) IsLoopback() bool {
	return d.Flags&net.FlagLoopback != 0
}

func (d Descriptor) IsUp() bool {
	return d.Flags&net.FlagUp != 0
}

func (d Descriptor) String() string {
	addrs := make([]string, 0, len(d.Addrs))
	for _, a := range d.Addrs {
		addrs = append(addrs, a.String())
	}
	mac := d.MAC.String()
	if mac == "" {
		mac = "-"
	}
	return fmt.Sprintf("%d: %s mac=%s addrs=[%s] flags=%s", d.Index, d.Name, mac, strings.Join(addrs, " "), d.Flags)
}

// Lister returns the host adapters. It is a variable so tests can swap it.
var Lister = List

// ByName looks an adapter up by its exact name
func ByName(name string) (Descriptor, error) {
	all, err := Lister()
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to list interfaces: %w", err)
	}
	return findByName(all, name)
}

// ByIndex looks an adapter up by its kernel index
func ByIndex(index int) (Descriptor, error) {
	all, err := Lister()
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, d := range all {
		if d.Index == index {
			return d, nil
		}
	}
	return Descriptor{}, &NotFoundError{Name: fmt.Sprintf("#%d", index), Available: names(all)}
}

func findByName(all []Descriptor, name string) (Descriptor, error) {
	for _, d := range all {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, &NotFoundError{Name: name, Available: names(all)}
}

func names(all []Descriptor) []string {
	out := make([]string, 0, len(all))
	for _, d := range all {
		out = append(out, d.Name)
	}
	return out
}

// fromNetInterface converts the standard library view of an adapter, keeping
// only IPv4 addresses
func fromNetInterface(ifi net.Interface, addrs []net.Addr) Descriptor {
	d := Descriptor{
		Index: ifi.Index,
		Name:  ifi.Name,
		MAC:   ifi.HardwareAddr,
		Flags: ifi.Flags,
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil {
			addr, _ := netip.AddrFromSlice(ip4)
			d.Addrs = append(d.Addrs, addr)
		}
	}
	return d
}

func listNetInterfaces() ([]Descriptor, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(ifaces))
	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			return nil, fmt.Errorf("failed to get addresses of %s: %w", ifi.Name, err)
		}
		out = append(out, fromNetInterface(ifi, addrs))
	}
	return out, nil
}
