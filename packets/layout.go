// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"fmt"

	"github.com/DataDog/datalink-traceroute/common"
)

// Fixed header sizes of a probe frame. IPv4 never carries options.
const (
	EthernetHeaderLen = 14
	IPv4HeaderLen     = 20
	ICMPHeaderLen     = 8
	UDPHeaderLen      = 8
	TCPHeaderLen      = 20

	// EthernetMinFrameLen is the shortest frame (without FCS) a NIC puts on the
	// wire. Shorter frames get padded, which would break the fixed frame size.
	EthernetMinFrameLen = 60
	// EthernetMaxFrameLen bounds the frame size to a standard MTU
	EthernetMaxFrameLen = 1500

	// ipOffset and transportOffset are where each header starts in a frame
	ipOffset        = EthernetHeaderLen
	transportOffset = EthernetHeaderLen + IPv4HeaderLen
)

// FrameSizeError is returned when a frame size cannot hold a probe
type FrameSizeError struct {
	Protocol  common.Protocol
	FrameSize int
	Min       int
	Max       int
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("frame size %d is invalid for %s probes (must be between %d and %d bytes)", e.FrameSize, e.Protocol, e.Min, e.Max)
}

// MinFrameSize is the smallest frame that holds the Ethernet, IPv4 and
// transport headers of the given protocol without link-layer padding
func MinFrameSize(protocol common.Protocol) int {
	headers := EthernetHeaderLen + IPv4HeaderLen + protocol.TransportHeaderLen()
	return max(headers, EthernetMinFrameLen)
}

// ValidateFrameSize checks frameSize against the protocol's header chain
func ValidateFrameSize(protocol common.Protocol, frameSize int) error {
	minSize := MinFrameSize(protocol)
	if frameSize < minSize || frameSize > EthernetMaxFrameLen {
		return &FrameSizeError{
			Protocol:  protocol,
			FrameSize: frameSize,
			Min:       minSize,
			Max:       EthernetMaxFrameLen,
		}
	}
	return nil
}
