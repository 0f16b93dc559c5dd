// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/iface"
)

var testDesc = iface.Descriptor{
	Index: 2,
	Name:  "eth0",
	MAC:   net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
	Addrs: []netip.Addr{netip.MustParseAddr("10.0.0.2")},
}

// fakeClock advances by step every time it is read
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (f *fakeClock) Now() time.Time {
	now := f.now
	f.now = f.now.Add(f.step)
	return now
}

func initChannelTest(t *testing.T) (*Channel, *MockHandle, *fakeClock) {
	ctrl := gomock.NewController(t)
	handle := NewMockHandle(ctrl)
	handle.EXPECT().Framing().Return(FramingEthernet)

	c, err := NewChannelWithHandle(testDesc, handle)
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), step: 10 * time.Millisecond}
	c.now = clock.Now
	return c, handle, clock
}

func deliver(frame []byte) func([]byte) (int, error) {
	return func(buf []byte) (int, error) {
		return copy(buf, frame), nil
	}
}

func TestChannelSource(t *testing.T) {
	c, _, _ := initChannelTest(t)
	assert.Equal(t, testDesc.MAC, c.SourceMAC())
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), c.SourceIP())
	assert.Equal(t, "eth0", c.Descriptor().Name)
}

func TestChannelRequiresIPv4(t *testing.T) {
	ctrl := gomock.NewController(t)
	desc := testDesc
	desc.Addrs = nil
	_, err := NewChannelWithHandle(desc, NewMockHandle(ctrl))
	var noIPv4 *iface.NoIPv4Error
	require.ErrorAs(t, err, &noIPv4)
}

func TestChannelSendExactBytes(t *testing.T) {
	c, handle, _ := initChannelTest(t)
	frame := []byte{1, 2, 3, 4}
	handle.EXPECT().Write(frame).Return(nil)
	require.NoError(t, c.Send(frame))

	writeErr := errors.New("network is down")
	handle.EXPECT().Write(frame).Return(writeErr)
	err := c.Send(frame)
	require.ErrorIs(t, err, writeErr)
}

func TestChannelSkipsIrrelevantFrames(t *testing.T) {
	c, handle, clock := initChannelTest(t)
	deadline := clock.now.Add(time.Second)

	handle.EXPECT().SetReadDeadline(deadline).Return(nil)
	gomock.InOrder(
		handle.EXPECT().Read(gomock.Any()).DoAndReturn(deliver(makeUDP4Frame(t, FramingEthernet))),
		handle.EXPECT().Read(gomock.Any()).DoAndReturn(deliver(makeEchoReply(t, FramingEthernet, "8.8.8.8"))),
		handle.EXPECT().Read(gomock.Any()).DoAndReturn(deliver(makeTimeExceeded(t, FramingEthernet, "192.0.2.1"))),
	)

	addr, ok, err := c.ReceiveWithTimeout(deadline)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), addr)
}

func TestChannelTimeout(t *testing.T) {
	c, handle, clock := initChannelTest(t)
	deadline := clock.now.Add(50 * time.Millisecond)

	handle.EXPECT().SetReadDeadline(deadline).Return(nil)
	// 10ms per clock read: 5 reads fit before the deadline
	handle.EXPECT().Read(gomock.Any()).Return(0, &common.ReceiveProbeNoPktError{Err: errors.New("timeout")}).Times(5)

	_, ok, err := c.ReceiveWithTimeout(deadline)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChannelRechecksDeadlineAfterEachFrame(t *testing.T) {
	c, handle, clock := initChannelTest(t)
	clock.step = time.Second
	deadline := clock.now.Add(500 * time.Millisecond)

	handle.EXPECT().SetReadDeadline(deadline).Return(nil)
	// a steady stream of irrelevant frames must not extend the wait
	handle.EXPECT().Read(gomock.Any()).DoAndReturn(deliver(makeUDP4Frame(t, FramingEthernet))).Times(1)

	_, ok, err := c.ReceiveWithTimeout(deadline)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChannelPastDeadlineDoesNotRead(t *testing.T) {
	c, handle, clock := initChannelTest(t)
	deadline := clock.now.Add(-time.Millisecond)
	handle.EXPECT().SetReadDeadline(deadline).Return(nil)

	_, ok, err := c.ReceiveWithTimeout(deadline)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChannelReadError(t *testing.T) {
	c, handle, clock := initChannelTest(t)
	deadline := clock.now.Add(time.Second)
	readErr := errors.New("interface vanished")

	handle.EXPECT().SetReadDeadline(deadline).Return(nil)
	handle.EXPECT().Read(gomock.Any()).Return(0, readErr)

	_, ok, err := c.ReceiveWithTimeout(deadline)
	require.ErrorIs(t, err, readErr)
	assert.False(t, ok)
}

func TestChannelClose(t *testing.T) {
	c, handle, _ := initChannelTest(t)
	handle.EXPECT().Close().Return(nil).Times(1)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	require.Error(t, c.Send([]byte{1}))
	_, _, err := c.ReceiveWithTimeout(time.Now().Add(time.Second))
	require.Error(t, err)
}

func TestChannelIgnoresDiagnosticsFromItself(t *testing.T) {
	c, handle, clock := initChannelTest(t)
	deadline := clock.now.Add(time.Second)

	handle.EXPECT().SetReadDeadline(deadline).Return(nil)
	gomock.InOrder(
		// an unreachable emitted by the local stack, seen on the way out
		handle.EXPECT().Read(gomock.Any()).DoAndReturn(deliver(makeTimeExceeded(t, FramingEthernet, "10.0.0.2"))),
		handle.EXPECT().Read(gomock.Any()).DoAndReturn(deliver(makeTimeExceeded(t, FramingEthernet, "192.0.2.1"))),
	)

	addr, ok, err := c.ReceiveWithTimeout(deadline)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), addr)
}
