// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/DataDog/datalink-traceroute/common"
)

const (
	ephemeralPortMin = 49152
	ephemeralPortMax = 65535 // exclusive
)

// RandomEphemeralPort draws a source port uniformly from [49152, 65535)
func RandomEphemeralPort() uint16 {
	return uint16(ephemeralPortMin + rand.IntN(ephemeralPortMax-ephemeralPortMin))
}

// FrameBuilder assembles Ethernet+IPv4 probe frames of a fixed size for one
// protocol and one source adapter
type FrameBuilder struct {
	protocol  common.Protocol
	srcMAC    net.HardwareAddr
	srcIP     netip.Addr
	frameSize int
	// padding is the zeroed transport payload, shared by every frame
	padding []byte
	// sourcePort picks the UDP/TCP source port of each frame
	sourcePort func() uint16
}

// NewFrameBuilder validates the frame geometry once, so that a bad frame size
// is reported before anything is sent
func NewFrameBuilder(protocol common.Protocol, srcMAC net.HardwareAddr, srcIP netip.Addr, frameSize int) (*FrameBuilder, error) {
	if !protocol.Valid() {
		return nil, fmt.Errorf("NewFrameBuilder: invalid protocol %s", protocol)
	}
	if len(srcMAC) != 6 {
		return nil, fmt.Errorf("NewFrameBuilder: source MAC %q is not an Ethernet address", srcMAC)
	}
	if !srcIP.Is4() {
		return nil, fmt.Errorf("NewFrameBuilder: source address %s is not IPv4", srcIP)
	}
	if err := ValidateFrameSize(protocol, frameSize); err != nil {
		return nil, err
	}

	return &FrameBuilder{
		protocol:   protocol,
		srcMAC:     srcMAC,
		srcIP:      srcIP,
		frameSize:  frameSize,
		padding:    make([]byte, frameSize-transportOffset-protocol.TransportHeaderLen()),
		sourcePort: RandomEphemeralPort,
	}, nil
}

// FrameSize is the length of every frame this builder returns
func (b *FrameBuilder) FrameSize() int {
	return b.frameSize
}

// Protocol is the probe protocol this builder emits
func (b *FrameBuilder) Protocol() common.Protocol {
	return b.protocol
}

// Build returns a new frame of exactly FrameSize bytes probing dstIP with the
// given TTL. port is the destination port for UDP and TCP and is ignored for
// ICMP. All length fields and checksums are filled in.
func (b *FrameBuilder) Build(dstMAC net.HardwareAddr, dstIP netip.Addr, ttl uint8, port uint16) ([]byte, error) {
	if len(dstMAC) != 6 {
		return nil, fmt.Errorf("Build: destination MAC %q is not an Ethernet address", dstMAC)
	}
	if !dstIP.Is4() {
		return nil, fmt.Errorf("Build: destination address %s is not IPv4", dstIP)
	}

	eth := &layers.Ethernet{
		SrcMAC:       b.srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := &layers.IPv4{
		Version:  4,
		IHL:      5,
		Flags:    layers.IPv4DontFragment,
		TTL:      ttl,
		Protocol: b.protocol.IPProtocol(),
		SrcIP:    b.srcIP.AsSlice(),
		DstIP:    dstIP.AsSlice(),
	}

	var transport gopacket.SerializableLayer
	switch b.protocol {
	case common.ProtocolUDP:
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(b.sourcePort()),
			DstPort: layers.UDPPort(port),
		}
		if err := udp.SetNetworkLayerForChecksum(ip4); err != nil {
			return nil, fmt.Errorf("failed to set UDP pseudo-header: %w", err)
		}
		transport = udp
	case common.ProtocolTCP:
		tcp := &layers.TCP{
			SrcPort:    layers.TCPPort(b.sourcePort()),
			DstPort:    layers.TCPPort(port),
			Seq:        0,
			Ack:        0,
			DataOffset: 5,
			SYN:        true,
			Window:     0,
		}
		if err := tcp.SetNetworkLayerForChecksum(ip4); err != nil {
			return nil, fmt.Errorf("failed to set TCP pseudo-header: %w", err)
		}
		transport = tcp
	default:
		transport = &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		}
	}

	// a fresh buffer per frame: nothing is reused from a previous probe
	buf := gopacket.NewSerializeBufferExpectedSize(b.frameSize, 0)
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	err := gopacket.SerializeLayers(buf, opts,
		eth,
		ip4,
		transport,
		gopacket.Payload(b.padding),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s probe: %w", b.protocol, err)
	}

	frame := buf.Bytes()
	if len(frame) != b.frameSize {
		return nil, fmt.Errorf("serialized %s probe is %d bytes, expected %d", b.protocol, len(frame), b.frameSize)
	}
	return frame, nil
}
