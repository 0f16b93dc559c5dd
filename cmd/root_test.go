package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/iface"
	"github.com/DataDog/datalink-traceroute/log"
	"github.com/DataDog/datalink-traceroute/result"
	"github.com/DataDog/datalink-traceroute/runner"
	"github.com/DataDog/datalink-traceroute/traceroute"
)

func stubRun(t *testing.T, res *result.Results, err error) *runner.TracerouteParams {
	t.Helper()
	got := new(runner.TracerouteParams)
	orig := runTraceroute
	runTraceroute = func(_ context.Context, params runner.TracerouteParams) (*result.Results, error) {
		*got = params
		return res, err
	}
	t.Cleanup(func() {
		runTraceroute = orig
		log.SetLogLevel(log.LevelInfo)
	})
	return got
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewCmdRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func sampleResults() *result.Results {
	res := result.NewResults(result.Params{
		Protocol:  "udp",
		Hostname:  "example.com",
		Interface: "eth0",
		MaxHops:   30,
		FrameSize: 80,
	})
	res.Traceroute.Source = result.TracerouteSource{IP: "192.0.2.10", MAC: "02:00:00:00:00:01"}
	res.Traceroute.Destination = result.TracerouteDestination{IP: "203.0.113.5", Port: 33434}
	res.Traceroute.Hops = []result.TracerouteHop{
		{TTL: 1, QueryResults: []result.TracerouteQueryResult{{RTT: 1500 * time.Microsecond, Addr: "192.0.2.1"}}},
		{TTL: 2, QueryResults: []result.TracerouteQueryResult{result.Timeout()}},
	}
	res.Traceroute.ReverseDns = map[string][]string{"192.0.2.1": {"gw.example"}}
	res.Normalize()
	return res
}

func TestRootDefaults(t *testing.T) {
	got := stubRun(t, sampleResults(), nil)
	_, err := execute(t, "example.com")
	require.NoError(t, err)

	want := runner.DefaultParams("example.com")
	assert.Equal(t, want.Hostname, got.Hostname)
	assert.Equal(t, common.DefaultProtocol, got.Protocol)
	assert.Equal(t, 0, got.Port)
	assert.Equal(t, want.MinTTL, got.MinTTL)
	assert.Equal(t, want.MaxTTL, got.MaxTTL)
	assert.Equal(t, want.Queries, got.Queries)
	assert.Equal(t, want.Timeout, got.Timeout)
	assert.Equal(t, want.FrameSize, got.FrameSize)
	assert.False(t, got.ReverseDns)
	assert.False(t, got.CollectSourcePublicIP)
}

func TestRootFlags(t *testing.T) {
	got := stubRun(t, sampleResults(), nil)
	_, err := execute(t, "example.com:53",
		"-P", "tcp", "-p", "443", "-i", "eth1", "--dst-mac", "aa:bb:cc:dd:ee:ff",
		"-f", "2", "-m", "12", "-q", "1", "--timeout", "250", "--frame-size", "128",
		"--reverse-dns", "--source-public-ip", "--tag", "a", "--tag", "b")
	require.NoError(t, err)

	assert.Equal(t, runner.TracerouteParams{
		Hostname:              "example.com:53",
		Port:                  443,
		Protocol:              "tcp",
		Interface:             "eth1",
		DestinationMAC:        "aa:bb:cc:dd:ee:ff",
		MinTTL:                2,
		MaxTTL:                12,
		Queries:               1,
		Timeout:               250 * time.Millisecond,
		FrameSize:             128,
		ReverseDns:            true,
		CollectSourcePublicIP: true,
		Tags:                  []string{"a", "b"},
	}, *got)
}

func TestRootEnvironment(t *testing.T) {
	t.Setenv("DLTRACE_MAX_TTL", "7")
	t.Setenv("DLTRACE_PROTO", "icmp")
	t.Setenv("DLTRACE_QUERIES", "5")
	got := stubRun(t, sampleResults(), nil)

	_, err := execute(t, "example.com", "-q", "2")
	require.NoError(t, err)
	assert.Equal(t, 7, got.MaxTTL)
	assert.Equal(t, "icmp", got.Protocol)
	assert.Equal(t, 2, got.Queries, "flags win over the environment")
}

func TestRootTextOutput(t *testing.T) {
	stubRun(t, sampleResults(), nil)
	out, err := execute(t, "example.com")
	require.NoError(t, err)

	assert.Equal(t, "traceroute to example.com (203.0.113.5) from 192.0.2.10 via eth0, 30 hops max, 80 byte frames\n"+
		" 1  1.500ms 192.0.2.1 [192.0.2.1=gw.example]\n"+
		" 2  *\n", out)
}

func TestRootJSONOutput(t *testing.T) {
	res := sampleResults()
	stubRun(t, res, nil)
	out, err := execute(t, "example.com", "--json")
	require.NoError(t, err)

	var decoded result.Results
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, res.RunID, decoded.RunID)
	assert.Equal(t, res.Traceroute.Hops, decoded.Traceroute.Hops)
}

func TestRootError(t *testing.T) {
	stubRun(t, nil, &traceroute.DNSError{Host: "nope.invalid", Err: errors.New("no such host")})

	out, err := execute(t, "nope.invalid", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DNS: ")

	var errResp traceroute.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(out), &errResp))
	assert.Equal(t, traceroute.ErrCodeDNS, errResp.Code)
}

func TestRootBadLogLevel(t *testing.T) {
	stubRun(t, sampleResults(), nil)
	_, err := execute(t, "example.com", "--log-level", "chatty")
	require.Error(t, err)
}

func TestRootRequiresTarget(t *testing.T) {
	stubRun(t, sampleResults(), nil)
	_, err := execute(t)
	require.Error(t, err)
}

func TestInterfacesCommand(t *testing.T) {
	orig := iface.Lister
	iface.Lister = func() ([]iface.Descriptor, error) {
		return []iface.Descriptor{
			{Index: 1, Name: "lo", Addrs: []netip.Addr{netip.MustParseAddr("127.0.0.1")}, Flags: net.FlagUp | net.FlagLoopback},
			{Index: 2, Name: "eth0", MAC: net.HardwareAddr{2, 0, 0, 0, 0, 1}, Addrs: []netip.Addr{netip.MustParseAddr("192.0.2.10")}, Flags: net.FlagUp},
		}, nil
	}
	t.Cleanup(func() { iface.Lister = orig })

	out, err := execute(t, "interfaces")
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "lo")
	assert.Contains(t, string(lines[0]), "unusable")
	assert.Contains(t, string(lines[1]), "eth0")
	assert.NotContains(t, string(lines[1]), "unusable")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
}
