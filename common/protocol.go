// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package common

import (
	"fmt"
	"strings"

	"github.com/google/gopacket/layers"
)

// Protocol selects the payload carried by outbound probes. Replies are always
// ICMP time-exceeded or destination-unreachable messages.
type Protocol int

const (
	ProtocolICMP Protocol = iota + 1
	ProtocolUDP
	ProtocolTCP
)

// UnknownProtocolError is returned by ParseProtocol
type UnknownProtocolError struct {
	Name string
}

func (e *UnknownProtocolError) Error() string {
	return fmt.Sprintf("unknown protocol %q (want icmp, udp or tcp)", e.Name)
}

// ParseProtocol accepts icmp, udp and tcp in any case
func ParseProtocol(name string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "icmp":
		return ProtocolICMP, nil
	case "udp":
		return ProtocolUDP, nil
	case "tcp":
		return ProtocolTCP, nil
	default:
		return 0, &UnknownProtocolError{Name: name}
	}
}

func (p Protocol) String() string {
	switch p {
	case ProtocolICMP:
		return "icmp"
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// Valid reports whether p is one of the three supported protocols
func (p Protocol) Valid() bool {
	return p >= ProtocolICMP && p <= ProtocolTCP
}

// IPProtocol is the value written in the IPv4 protocol field
func (p Protocol) IPProtocol() layers.IPProtocol {
	switch p {
	case ProtocolUDP:
		return layers.IPProtocolUDP
	case ProtocolTCP:
		return layers.IPProtocolTCP
	default:
		return layers.IPProtocolICMPv4
	}
}

// TransportHeaderLen is the size of the transport header the probe carries
func (p Protocol) TransportHeaderLen() int {
	if p == ProtocolTCP {
		return 20
	}
	return 8
}

// MarshalText lets Protocol be used directly in JSON documents and flags
func (p Protocol) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid protocol %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Protocol) UnmarshalText(text []byte) error {
	parsed, err := ParseProtocol(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
