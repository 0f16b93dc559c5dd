// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/iface"
	"github.com/DataDog/datalink-traceroute/packets"
)

func TestDefaultConfig(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint16(33434), cfg.Port)
	assert.Equal(t, common.ProtocolUDP, cfg.Protocol)
	assert.Equal(t, 1, cfg.FirstTTL)
	assert.Equal(t, 30, cfg.MaxHops)
	assert.Equal(t, 3, cfg.QueriesPerHop)
	assert.Equal(t, 80, cfg.FrameSize)
	assert.Equal(t, 30, cfg.MaxHopCount())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"ipv6 destination", func(c *Config) { c.Destination = netip.MustParseAddr("2001:db8::1") }, "destination"},
		{"missing destination", func(c *Config) { c.Destination = netip.Addr{} }, "destination"},
		{"short destination MAC", func(c *Config) { c.DestinationMAC = net.HardwareAddr{1, 2, 3} }, "destination MAC"},
		{"unknown protocol", func(c *Config) { c.Protocol = common.Protocol(42) }, "protocol"},
		{"first TTL zero", func(c *Config) { c.FirstTTL = 0 }, "first TTL"},
		{"first TTL too large", func(c *Config) { c.FirstTTL = 255; c.MaxHops = 255 }, "first TTL"},
		{"max hops zero", func(c *Config) { c.MaxHops = 0 }, "max hops"},
		{"max hops too large", func(c *Config) { c.MaxHops = 255 }, "max hops"},
		{"max hops below first TTL", func(c *Config) { c.FirstTTL = 10; c.MaxHops = 9 }, "max hops"},
		{"no queries", func(c *Config) { c.QueriesPerHop = 0 }, "queries per hop"},
		{"no timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"frame below protocol minimum", func(c *Config) { c.Protocol = common.ProtocolTCP; c.FrameSize = 40 }, "frame size"},
		{"frame below configured bound", func(c *Config) { c.FrameSize = 70 }, "frame size"},
		{"frame above MTU", func(c *Config) { c.FrameSize = 1501 }, "frame size"},
		{"interface without MAC", func(c *Config) { c.Interface.MAC = nil }, "interface"},
		{"interface without IPv4", func(c *Config) {
			c.Interface.Addrs = []netip.Addr{netip.MustParseAddr("fe80::1")}
		}, "interface"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var configErr *ConfigError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, tt.field, configErr.Field)
			assert.Contains(t, err.Error(), tt.field)
			assert.Equal(t, ErrCodeInvalidRequest, ClassifyError(err).Code)
		})
	}
}

func TestConfigValidateBounds(t *testing.T) {
	cfg := testConfig()
	cfg.FirstTTL = 254
	cfg.MaxHops = 254
	cfg.FrameSize = 1500
	cfg.Timeout = time.Nanosecond
	cfg.QueriesPerHop = 1
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.MaxHopCount())

	// v4-mapped destinations are accepted
	cfg.Destination = netip.MustParseAddr("::ffff:8.8.8.8")
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateWrapsCauses(t *testing.T) {
	cfg := testConfig()
	cfg.FrameSize = 50
	var frameSizeErr *packets.FrameSizeError
	require.ErrorAs(t, cfg.Validate(), &frameSizeErr)
	assert.Equal(t, packets.MinFrameSize(common.ProtocolUDP), frameSizeErr.Min)

	cfg = testConfig()
	cfg.Interface.Addrs = nil
	var noIPv4 *iface.NoIPv4Error
	require.ErrorAs(t, cfg.Validate(), &noIPv4)
}
