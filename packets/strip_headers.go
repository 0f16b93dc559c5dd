// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// stripLinkHeader returns the IPv4 packet carried by a captured frame. It
// returns nil without error when the frame is well formed but carries
// something other than IPv4.
func stripLinkHeader(frame []byte, framing Framing) ([]byte, error) {
	if !framing.Ethernet {
		if len(frame) < framing.Strip {
			return nil, fmt.Errorf("stripLinkHeader: frame of %d bytes is shorter than the %d byte link prefix", len(frame), framing.Strip)
		}
		return frame[framing.Strip:], nil
	}
	return stripEthernetHeader(frame)
}

// removes the preceding ethernet header from the buffer
func stripEthernetHeader(buf []byte) ([]byte, error) {
	var eth layers.Ethernet
	err := (&eth).DecodeFromBytes(buf, gopacket.NilDecodeFeedback)
	if err != nil {
		return nil, fmt.Errorf("stripEthernetHeader failed to decode ethernet: %w", err)
	}
	// return zero bytes when the it's not an IPv4 packet
	if eth.EthernetType != layers.EthernetTypeIPv4 {
		return nil, nil
	}
	return eth.Payload, nil
}
