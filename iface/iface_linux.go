// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build linux

package iface

import (
	"fmt"
	"net/netip"

	"github.com/vishvananda/netlink"

	"github.com/DataDog/datalink-traceroute/log"
)

var (
	linkList = netlink.LinkList
	addrList = netlink.AddrList
)

// List enumerates the adapters through netlink. If netlink is unavailable
// (restricted containers) it falls back to the standard library.
func List() ([]Descriptor, error) {
	links, err := linkList()
	if err != nil {
		log.Debugf("netlink link listing failed, falling back to net.Interfaces: %v", err)
		return listNetInterfaces()
	}

	out := make([]Descriptor, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		addrs, err := addrList(link, netlink.FAMILY_V4)
		if err != nil {
			return nil, fmt.Errorf("failed to list addresses of %s: %w", attrs.Name, err)
		}
		out = append(out, fromNetlink(attrs, addrs))
	}
	return out, nil
}

func fromNetlink(attrs *netlink.LinkAttrs, addrs []netlink.Addr) Descriptor {
	d := Descriptor{
		Index: attrs.Index,
		Name:  attrs.Name,
		MAC:   attrs.HardwareAddr,
		Flags: attrs.Flags,
	}
	for _, a := range addrs {
		if a.IPNet == nil {
			continue
		}
		if ip4 := a.IP.To4(); ip4 != nil {
			addr, _ := netip.AddrFromSlice(ip4)
			d.Addrs = append(d.Addrs, addr)
		}
	}
	return d
}
