// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

func makeEth(t *testing.T, ethType layers.EthernetType) *layers.Ethernet {
	src, err := net.ParseMAC("00:00:5e:00:53:01")
	require.NoError(t, err)
	dst, err := net.ParseMAC("00:00:5e:00:53:02")
	require.NoError(t, err)

	return &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       dst,
		EthernetType: ethType,
	}
}

// serializeFramed lays out ls behind the link header framing expects
func serializeFramed(t *testing.T, framing Framing, ethType layers.EthernetType, ls ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if framing.Ethernet {
		ls = append([]gopacket.SerializableLayer{makeEth(t, ethType)}, ls...)
	}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	if framing.Ethernet {
		return buf.Bytes()
	}
	return append(make([]byte, framing.Strip), buf.Bytes()...)
}

// quotedProbe is the start of the probe a router quotes back
func quotedProbe(t *testing.T) []byte {
	ip4 := &layers.IPv4{
		Version:  4,
		TTL:      1,
		SrcIP:    net.ParseIP("10.0.0.2"),
		DstIP:    net.ParseIP("8.8.8.8"),
		Protocol: layers.IPProtocolUDP,
	}
	udp := &layers.UDP{SrcPort: 50000, DstPort: 33434}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip4))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip4, udp))
	return buf.Bytes()
}

func makeICMPFrame(t *testing.T, framing Framing, src string, typ, code uint8) []byte {
	ip4 := &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    net.ParseIP(src),
		DstIP:    net.ParseIP("10.0.0.2"),
		Id:       41821,
		Protocol: layers.IPProtocolICMPv4,
	}
	icmp4 := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(typ, code),
	}
	return serializeFramed(t, framing, layers.EthernetTypeIPv4, ip4, icmp4, gopacket.Payload(quotedProbe(t)))
}

func makeTimeExceeded(t *testing.T, framing Framing, src string) []byte {
	return makeICMPFrame(t, framing, src, layers.ICMPv4TypeTimeExceeded, layers.ICMPv4CodeTTLExceeded)
}

func makeDestUnreachable(t *testing.T, framing Framing, src string) []byte {
	return makeICMPFrame(t, framing, src, layers.ICMPv4TypeDestinationUnreachable, layers.ICMPv4CodePort)
}

func makeEchoReply(t *testing.T, framing Framing, src string) []byte {
	return makeICMPFrame(t, framing, src, layers.ICMPv4TypeEchoReply, 0)
}

func makeUDP4Frame(t *testing.T, framing Framing) []byte {
	ip4 := &layers.IPv4{
		Version:  4,
		TTL:      123,
		SrcIP:    net.ParseIP("127.0.0.1"),
		DstIP:    net.ParseIP("127.0.0.2"),
		Protocol: layers.IPProtocolUDP,
	}
	udp := &layers.UDP{SrcPort: 123, DstPort: 456}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip4))
	return serializeFramed(t, framing, layers.EthernetTypeIPv4, ip4, udp, gopacket.Payload("hello"))
}

func makeICMP6Frame(t *testing.T, framing Framing) []byte {
	ip6 := &layers.IPv6{
		Version:    6,
		SrcIP:      net.ParseIP("::1"),
		DstIP:      net.ParseIP("::1"),
		NextHeader: layers.IPProtocolICMPv6,
	}
	icmp6 := &layers.ICMPv6{
		TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeTimeExceeded, layers.ICMPv6CodeHopLimitExceeded),
	}
	require.NoError(t, icmp6.SetNetworkLayerForChecksum(ip6))
	return serializeFramed(t, framing, layers.EthernetTypeIPv6, ip6, icmp6, gopacket.Payload("hello"))
}

// makeFragmentFrame is a non-first fragment whose first payload byte looks
// like a time-exceeded type
func makeFragmentFrame(t *testing.T, framing Framing) []byte {
	ip4 := &layers.IPv4{
		Version:    4,
		TTL:        64,
		SrcIP:      net.ParseIP("192.0.2.1"),
		DstIP:      net.ParseIP("10.0.0.2"),
		Protocol:   layers.IPProtocolICMPv4,
		FragOffset: 10,
	}
	return serializeFramed(t, framing, layers.EthernetTypeIPv4, ip4, gopacket.Payload([]byte{11, 0, 0, 0, 0, 0, 0, 0}))
}
