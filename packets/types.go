// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedPlatform is returned by OpenHandle where no raw link-layer
// capture is implemented
var ErrUnsupportedPlatform = errors.New("raw link-layer capture is not supported on this platform")

//go:generate mockgen -source=types.go -destination=mock_handle.go -package=packets

// Handle is a raw link-layer send/receive capability bound to one adapter.
// It is owned by exactly one Channel.
type Handle interface {
	// Write transmits a complete link-layer frame as-is
	Write(frame []byte) error
	// Read copies the next captured frame into buf. It returns a
	// *common.ReceiveProbeNoPktError once the read deadline has passed.
	Read(buf []byte) (int, error)
	// SetReadDeadline bounds how long Read may block
	SetReadDeadline(t time.Time) error
	// Framing describes the link header captured frames start with
	Framing() Framing
	Close() error
}

// Framing describes how captured frames are laid out before the IPv4 header.
// It is decided once per adapter.
type Framing struct {
	// Ethernet frames start with a 14 byte Ethernet header
	Ethernet bool
	// Strip is the fixed prefix to skip on non-Ethernet links (for example the
	// 4 byte address family header of BSD loopback captures)
	Strip int
}

var (
	// FramingEthernet is used for adapters with an Ethernet header
	FramingEthernet = Framing{Ethernet: true}
	// FramingRawIP is used for L3 adapters delivering bare IPv4 packets
	FramingRawIP = Framing{}
	// FramingNull is the BSD DLT_NULL loopback/tunnel header
	FramingNull = Framing{Strip: 4}
)

// ipOffset returns where the IPv4 header starts in a captured frame
func (f Framing) ipOffset() int {
	if f.Ethernet {
		return EthernetHeaderLen
	}
	return f.Strip
}

func (f Framing) String() string {
	if f.Ethernet {
		return "ethernet"
	}
	return fmt.Sprintf("raw(strip=%d)", f.Strip)
}
