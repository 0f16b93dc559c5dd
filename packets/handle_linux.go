// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build linux

package packets

import (
	"fmt"
	"os"
	"syscall"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/iface"
	"github.com/DataDog/datalink-traceroute/log"
)

// htons converts a short (uint16) from host-to-network byte order.
func htons(i uint16) uint16 {
	return (i<<8)&0xff00 | i>>8
}

// packetSocket is an AF_PACKET socket bound to one interface. The fd is
// non-blocking and owned by an *os.File so reads park on the runtime
// netpoller and honor read deadlines.
type packetSocket struct {
	file    *os.File
	conn    syscall.RawConn
	framing Framing
}

var _ Handle = &packetSocket{}

// framingFor picks the framing of a Linux interface. L3 devices (tun,
// wireguard) have no hardware address and deliver bare IP packets to packet
// sockets.
func framingFor(desc iface.Descriptor) Framing {
	if len(desc.MAC) == 0 {
		return FramingRawIP
	}
	return FramingEthernet
}

func attachClassicBPF(fd int, filter []bpf.RawInstruction) error {
	prog := make([]unix.SockFilter, len(filter))
	for i, ins := range filter {
		prog[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: (*unix.SockFilter)(unsafe.Pointer(&prog[0])),
	}
	return unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog)
}

// OpenHandle opens a packet socket on the interface
func OpenHandle(desc iface.Descriptor) (Handle, error) {
	proto := htons(unix.ETH_P_ALL)
	// protocol 0 receives nothing until bind, so no frame is queued before
	// the filter is in place
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "OpenHandle failed to create packet socket")
	}

	framing := framingFor(desc)
	filter, err := getClassicBPFFilter(framing)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := attachClassicBPF(fd, filter); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "OpenHandle failed to attach filter")
	}

	err = unix.Bind(fd, &unix.SockaddrLinklayer{Protocol: proto, Ifindex: desc.Index})
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "OpenHandle failed to bind to %s", desc.Name)
	}

	file := os.NewFile(uintptr(fd), "packet:"+desc.Name)
	conn, err := file.SyscallConn()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "OpenHandle failed to get raw conn")
	}

	log.Debugf("opened packet socket on %s (index %d, %s framing)", desc.Name, desc.Index, framing)
	return &packetSocket{
		file:    file,
		conn:    conn,
		framing: framing,
	}, nil
}

// Write implements Handle.
func (p *packetSocket) Write(frame []byte) error {
	_, err := p.file.Write(frame)
	return err
}

// Read implements Handle. Frames this host transmitted are skipped, only
// received ones are returned.
func (p *packetSocket) Read(buf []byte) (int, error) {
	for {
		n, pktType, err := p.recv(buf)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, &common.ReceiveProbeNoPktError{Err: err}
		}
		if err != nil {
			return 0, fmt.Errorf("packetSocket failed to read: %w", err)
		}
		if pktType == unix.PACKET_OUTGOING {
			continue
		}
		return n, nil
	}
}

// recv reads one frame along with its packet type
func (p *packetSocket) recv(buf []byte) (n int, pktType uint8, err error) {
	var from unix.Sockaddr
	var recvErr error
	err = p.conn.Read(func(fd uintptr) bool {
		n, from, recvErr = unix.Recvfrom(int(fd), buf, 0)
		return recvErr != unix.EAGAIN
	})
	if err != nil {
		return 0, 0, err
	}
	if recvErr != nil {
		return 0, 0, recvErr
	}
	if ll, ok := from.(*unix.SockaddrLinklayer); ok {
		pktType = ll.Pkttype
	}
	return n, pktType, nil
}

// SetReadDeadline implements Handle.
func (p *packetSocket) SetReadDeadline(t time.Time) error {
	return p.file.SetReadDeadline(t)
}

// Framing implements Handle.
func (p *packetSocket) Framing() Framing {
	return p.framing
}

// Close implements Handle.
func (p *packetSocket) Close() error {
	return p.file.Close()
}
