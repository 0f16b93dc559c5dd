// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/iface"
	"github.com/DataDog/datalink-traceroute/packets"
	"github.com/DataDog/datalink-traceroute/result"
)

func stubOpenChannel(t *testing.T, ch *fakeChannel, err error) *int {
	calls := 0
	orig := openChannel
	openChannel = func(desc iface.Descriptor) (probeChannel, error) {
		calls++
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	t.Cleanup(func() { openChannel = orig })
	return &calls
}

var routeScript = map[uint8][]answer{
	1: {{addr: "10.0.0.1"}, {addr: "10.0.0.1"}, {addr: "10.0.0.1"}},
	2: {{}, {addr: "192.0.2.1"}},
	3: {{addr: "8.8.8.8"}},
}

func TestNewOpensChannel(t *testing.T) {
	ch := newFakeChannel(routeScript)
	calls := stubOpenChannel(t, ch, nil)

	s, err := New(testConfig())
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 1, *calls)
	assert.Equal(t, testConfig().Destination, s.Config().Destination)
	// nothing is sent before the first hop is pulled
	assert.Empty(t, ch.sent)
}

func TestNewRejectsSmallFrameBeforeOpening(t *testing.T) {
	calls := stubOpenChannel(t, newFakeChannel(nil), nil)

	cfg := testConfig()
	cfg.Protocol = common.ProtocolTCP
	cfg.FrameSize = 40
	_, err := New(cfg)
	require.Error(t, err)

	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	var frameSizeErr *packets.FrameSizeError
	require.ErrorAs(t, err, &frameSizeErr)
	assert.Equal(t, 40, frameSizeErr.FrameSize)
	assert.Equal(t, 0, *calls)
}

func TestNewChannelFailure(t *testing.T) {
	openErr := errors.New("operation not permitted")
	stubOpenChannel(t, nil, openErr)

	_, err := New(testConfig())
	require.ErrorIs(t, err, openErr)
}

func TestLazyAndEagerAreEquivalent(t *testing.T) {
	eager := newTestSession(t, testConfig(), newFakeChannel(routeScript))
	eagerHops, err := eager.Run(context.Background())
	require.NoError(t, err)

	lazy := newTestSession(t, testConfig(), newFakeChannel(routeScript))
	var lazyHops []result.TracerouteHop
	for hop := range lazy.All() {
		lazyHops = append(lazyHops, hop)
	}
	require.NoError(t, lazy.Err())

	assert.Len(t, eagerHops, 3)
	assert.Equal(t, len(eagerHops), len(lazyHops))
	for i := range eagerHops {
		assert.Equal(t, eagerHops[i].TTL, lazyHops[i].TTL)
		assert.Equal(t, addrsOf(eagerHops[i]), addrsOf(lazyHops[i]))
	}
}

func TestFinishedSessionIsEmpty(t *testing.T) {
	ch := newFakeChannel(routeScript)
	s := newTestSession(t, testConfig(), ch)

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	sent := len(ch.sent)

	hops, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hops)
	for range s.All() {
		t.Fatal("finished session yielded a hop")
	}
	assert.Len(t, ch.sent, sent)
	assert.Equal(t, 1, ch.closed)
}

func TestPartialIterationResumes(t *testing.T) {
	s := newTestSession(t, testConfig(), newFakeChannel(routeScript))

	for hop := range s.All() {
		assert.Equal(t, uint8(1), hop.TTL)
		break
	}
	hops, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, hops, 2)
	assert.Equal(t, uint8(2), hops[0].TTL)
}

func TestRunHonorsContext(t *testing.T) {
	ch := newFakeChannel(nil)
	s := newTestSession(t, testConfig(), ch)

	ctx, cancel := context.WithCancel(context.Background())
	hop, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, uint8(1), hop.TTL)
	cancel()

	hops, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, hops)
	assert.Equal(t, 1, ch.closed)
}

func TestCloseAbandonsWalk(t *testing.T) {
	ch := newFakeChannel(nil)
	s := newTestSession(t, testConfig(), ch)

	_, ok := s.Next()
	require.True(t, ok)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, ch.closed)

	_, ok = s.Next()
	assert.False(t, ok)
	assert.NoError(t, s.Err())
}
