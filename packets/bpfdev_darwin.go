// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build darwin

package packets

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/iface"
	"github.com/DataDog/datalink-traceroute/log"
)

// Note: the BSD docs say BPF headers are aligned along the machine's word boundary.
// This isn't true anymore for 64 bit systems, the alignment is still 4 bytes.
// So it's not aligned by the size of a pointer but rather the alignment of the BpfHdr struct here.
const bpfSize = int(unsafe.Alignof(unix.BpfHdr{}))

func bpfAlign(x int) int {
	const mask = bpfSize - 1
	return (x + mask) &^ mask
}

// maxBpfDevices is the hard limit MacOS has for bpf devices
const maxBpfDevices = 256

// link types reported by BIOCGDLT
const (
	dltNull     = 0
	dltEthernet = 1
	dltRaw      = 12
)

func pickBpfDevice() (int, error) {
	for i := 0; i < maxBpfDevices; i++ {
		name := fmt.Sprintf("/dev/bpf%d", i)
		fd, err := unix.Open(name, unix.O_RDWR, 0)
		if err == unix.EBUSY {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("pickBpfDevice failed to open %s: %w", name, err)
		}

		return fd, nil
	}

	return 0, fmt.Errorf("pickBpfDevice tried all %d bpf devices, were all busy", maxBpfDevices)
}

func framingForDatalink(dlt int) (Framing, error) {
	switch dlt {
	case dltEthernet:
		return FramingEthernet, nil
	case dltNull:
		return FramingNull, nil
	case dltRaw:
		return FramingRawIP, nil
	default:
		return Framing{}, fmt.Errorf("unsupported BPF data link type %d", dlt)
	}
}

// BpfDevice is a /dev/bpf handle bound to one interface
type BpfDevice struct {
	fd       int
	framing  Framing
	deadline time.Time
	readBuf  []byte
	pktBuf   []byte
}

var _ Handle = &BpfDevice{}

// Close implements Handle.
func (b *BpfDevice) Close() error {
	if b.fd == 0 {
		return nil
	}
	fd := b.fd
	b.fd = 0
	return unix.Close(fd)
}

// Framing implements Handle.
func (b *BpfDevice) Framing() Framing {
	return b.framing
}

// Write implements Handle. The header-complete flag is set, so the source MAC
// in frame is sent as-is.
func (b *BpfDevice) Write(frame []byte) error {
	_, err := unix.Write(b.fd, frame)
	return err
}

func (b *BpfDevice) hasNextPacket() bool {
	return len(b.pktBuf) > 0
}

var errNoNewPackets = &common.ReceiveProbeNoPktError{Err: fmt.Errorf("no new packets before timeout")}

func (b *BpfDevice) readPackets() error {
	timeout, expired := getReadTimeout(b.deadline, time.Now())
	if expired {
		return errNoNewPackets
	}
	tv := syscall.NsecToTimeval(timeout.Nanoseconds())
	err := syscall.SetBpfTimeout(b.fd, &tv)
	if err != nil {
		return fmt.Errorf("readPackets failed to SetBpfTimeout: %w", err)
	}
	n, err := unix.Read(b.fd, b.readBuf)
	if err == unix.EINTR {
		return errNoNewPackets
	}
	if err != nil {
		return fmt.Errorf("readPackets failed to Read: %w", err)
	}
	b.pktBuf = b.readBuf[:n]
	if n == 0 {
		return errNoNewPackets
	}

	return nil
}

// nextPacket returns the next captured frame, including its link header (but
// not the darwin BpfHdr)
func (b *BpfDevice) nextPacket() ([]byte, error) {
	if len(b.pktBuf) < int(unsafe.Sizeof(unix.BpfHdr{})) {
		size := len(b.pktBuf)
		b.pktBuf = nil
		return nil, fmt.Errorf("nextPacket: buffer size=%d is too small", size)
	}
	header := (*unix.BpfHdr)(unsafe.Pointer(&b.pktBuf[0]))
	start := int(header.Hdrlen)
	pktFinish := start + int(header.Caplen)
	dataFinish := bpfAlign(pktFinish)
	if len(b.pktBuf) < pktFinish {
		size := len(b.pktBuf)
		b.pktBuf = nil
		return nil, fmt.Errorf("nextPacket: buffer size=%d is smaller than expected size %d", size, pktFinish)
	}

	packet := b.pktBuf[start:pktFinish]
	if len(b.pktBuf) > dataFinish {
		b.pktBuf = b.pktBuf[dataFinish:]
	} else {
		b.pktBuf = nil
	}

	return packet, nil
}

// Read implements Handle. One read syscall may return several packets, which
// are handed out one per call.
func (b *BpfDevice) Read(buf []byte) (int, error) {
	if !b.hasNextPacket() {
		err := b.readPackets()
		if err != nil {
			return 0, err
		}
	}

	frame, err := b.nextPacket()
	if err != nil {
		return 0, err
	}
	return copy(buf, frame), nil
}

// SetReadDeadline implements Handle.
func (b *BpfDevice) SetReadDeadline(t time.Time) error {
	b.deadline = t
	return nil
}

func setBpfFilter(fd int, filter []bpf.RawInstruction) error {
	prog := make([]syscall.BpfInsn, len(filter))
	for i, ins := range filter {
		prog[i] = syscall.BpfInsn{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return syscall.SetBpf(fd, prog)
}

// OpenHandle opens the first free BPF device and binds it to the interface
func OpenHandle(desc iface.Descriptor) (Handle, error) {
	fd, err := pickBpfDevice()
	if err != nil {
		return nil, err
	}
	fail := func(format string, err error) (Handle, error) {
		unix.Close(fd)
		return nil, fmt.Errorf(format, err)
	}

	err = syscall.SetBpfImmediate(fd, 1)
	if err != nil {
		return fail("OpenHandle failed to SetBpfImmediate: %w", err)
	}
	err = syscall.SetBpfInterface(fd, desc.Name)
	if err != nil {
		return fail("OpenHandle failed to SetBpfInterface: %w", err)
	}
	err = syscall.SetBpfHeadercmpl(fd, 1)
	if err != nil {
		return fail("OpenHandle failed to SetBpfHeadercmpl: %w", err)
	}
	// only capture what arrives, not what we send
	err = unix.IoctlSetPointerInt(fd, unix.BIOCSSEESENT, 0)
	if err != nil {
		return fail("OpenHandle failed to clear BIOCSSEESENT: %w", err)
	}
	dlt, err := syscall.BpfDatalink(fd)
	if err != nil {
		return fail("OpenHandle failed to get BpfDatalink: %w", err)
	}
	framing, err := framingForDatalink(dlt)
	if err != nil {
		return fail("OpenHandle: %w", err)
	}
	filter, err := getClassicBPFFilter(framing)
	if err != nil {
		return fail("OpenHandle: %w", err)
	}
	err = setBpfFilter(fd, filter)
	if err != nil {
		return fail("OpenHandle failed to SetBpf: %w", err)
	}
	// reads must use exactly the kernel's buffer length
	bufLen, err := syscall.BpfBuflen(fd)
	if err != nil {
		return fail("OpenHandle failed to get BpfBuflen: %w", err)
	}

	log.Debugf("opened bpf device on %s (%s framing, buflen %d)", desc.Name, framing, bufLen)
	return &BpfDevice{
		fd:      fd,
		framing: framing,
		readBuf: make([]byte, bufLen),
		// no packets yet
		pktBuf: nil,
	}, nil
}
