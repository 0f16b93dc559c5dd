// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/iface"
	"github.com/DataDog/datalink-traceroute/log"
)

// captureBufSize holds any frame a 1500 MTU link (plus VLAN tags) delivers
const captureBufSize = 4096

// Channel sends probe frames and waits for their ICMP diagnostics on one
// interface. It exclusively owns its Handle and is not safe for concurrent
// use.
type Channel struct {
	desc       iface.Descriptor
	srcIP      netip.Addr
	handle     Handle
	classifier Classifier
	buf        []byte
	closed     bool
	now        func() time.Time
}

// NewChannel opens a raw handle on desc. Failing to acquire the handle is
// fatal to the caller, it is not retried.
func NewChannel(desc iface.Descriptor) (*Channel, error) {
	srcIP, err := desc.SourceIPv4()
	if err != nil {
		return nil, err
	}
	handle, err := OpenHandle(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw handle on %s: %w", desc.Name, err)
	}
	return newChannel(desc, srcIP, handle), nil
}

// NewChannelWithHandle builds a channel on an already opened handle, which
// the channel takes ownership of.
func NewChannelWithHandle(desc iface.Descriptor, handle Handle) (*Channel, error) {
	srcIP, err := desc.SourceIPv4()
	if err != nil {
		return nil, err
	}
	return newChannel(desc, srcIP, handle), nil
}

func newChannel(desc iface.Descriptor, srcIP netip.Addr, handle Handle) *Channel {
	return &Channel{
		desc:       desc,
		srcIP:      srcIP,
		handle:     handle,
		classifier: NewClassifier(handle.Framing()),
		buf:        make([]byte, captureBufSize),
		now:        time.Now,
	}
}

// Descriptor returns the interface the channel is bound to
func (c *Channel) Descriptor() iface.Descriptor {
	return c.desc
}

// SourceMAC is the hardware address outgoing frames carry
func (c *Channel) SourceMAC() net.HardwareAddr {
	return c.desc.MAC
}

// SourceIP is the IPv4 address outgoing frames carry
func (c *Channel) SourceIP() netip.Addr {
	return c.srcIP
}

// Send transmits frame exactly as given. There is no retry.
func (c *Channel) Send(frame []byte) error {
	if c.closed {
		return fmt.Errorf("send on closed channel for %s", c.desc.Name)
	}
	if err := c.handle.Write(frame); err != nil {
		return fmt.Errorf("failed to send frame on %s: %w", c.desc.Name, err)
	}
	return nil
}

// ReceiveWithTimeout blocks until an ICMP time-exceeded or
// destination-unreachable frame arrives, returning the router that sent it,
// or until deadline passes, returning ok=false. Irrelevant frames are
// dropped. Only handle failures are returned as errors.
func (c *Channel) ReceiveWithTimeout(deadline time.Time) (addr netip.Addr, ok bool, err error) {
	if c.closed {
		return netip.Addr{}, false, fmt.Errorf("receive on closed channel for %s", c.desc.Name)
	}
	if err := c.handle.SetReadDeadline(deadline); err != nil {
		return netip.Addr{}, false, fmt.Errorf("failed to set read deadline on %s: %w", c.desc.Name, err)
	}

	// the deadline is checked again after every frame
	for c.now().Before(deadline) {
		n, err := c.handle.Read(c.buf)
		if common.IsNoPacketErr(err) {
			continue
		}
		if err != nil {
			return netip.Addr{}, false, fmt.Errorf("failed to read from %s: %w", c.desc.Name, err)
		}

		addr, ok := c.classifier.Classify(c.buf[:n])
		// our own stack's diagnostics never describe the path
		if ok && addr != c.srcIP {
			return addr, true, nil
		}
		log.TraceFunc(func() string {
			return fmt.Sprintf("channel %s: dropped %d byte frame", c.desc.Name, n)
		})
	}
	return netip.Addr{}, false, nil
}

// Close releases the handle. Closing twice is a no-op.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.handle.Close()
}
