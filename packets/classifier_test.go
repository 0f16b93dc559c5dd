// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	for _, framing := range []Framing{FramingEthernet, FramingRawIP, FramingNull} {
		t.Run(framing.String(), func(t *testing.T) {
			c := NewClassifier(framing)

			addr, ok := c.Classify(makeTimeExceeded(t, framing, "192.0.2.1"))
			require.True(t, ok)
			// the outer source, not the quoted destination
			assert.Equal(t, netip.MustParseAddr("192.0.2.1"), addr)

			addr, ok = c.Classify(makeDestUnreachable(t, framing, "8.8.8.8"))
			require.True(t, ok)
			assert.Equal(t, netip.MustParseAddr("8.8.8.8"), addr)

			rejected := map[string][]byte{
				"echo reply": makeEchoReply(t, framing, "8.8.8.8"),
				"udp":        makeUDP4Frame(t, framing),
				"icmp6":      makeICMP6Frame(t, framing),
				"fragment":   makeFragmentFrame(t, framing),
				"empty":      nil,
			}
			for name, frame := range rejected {
				_, ok := c.Classify(frame)
				assert.False(t, ok, name)
			}
		})
	}
}

func TestClassifyTruncated(t *testing.T) {
	frame := makeTimeExceeded(t, FramingEthernet, "192.0.2.1")
	c := NewClassifier(FramingEthernet)
	// inside the Ethernet header, inside the IPv4 header, inside the ICMP header
	for _, n := range []int{0, 10, EthernetHeaderLen + 12, EthernetHeaderLen + IPv4HeaderLen + 2} {
		_, ok := c.Classify(frame[:n])
		assert.False(t, ok, "truncated at %d", n)
	}
}

func TestClassifyWrongFraming(t *testing.T) {
	// an Ethernet frame read as raw IP starts with a MAC, not a version nibble
	frame := makeTimeExceeded(t, FramingEthernet, "192.0.2.1")
	_, ok := NewClassifier(FramingRawIP).Classify(frame)
	assert.False(t, ok)
}

func TestIsRelevantICMP(t *testing.T) {
	assert.True(t, IsRelevantICMP(11))
	assert.True(t, IsRelevantICMP(3))
	assert.False(t, IsRelevantICMP(0))
	assert.False(t, IsRelevantICMP(8))
	assert.False(t, IsRelevantICMP(5))
}
