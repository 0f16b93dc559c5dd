package runner

import (
	"time"

	"github.com/DataDog/datalink-traceroute/common"
)

// TracerouteParams is the user facing description of a run. Zero values of
// Interface and DestinationMAC mean "follow the routing table".
type TracerouteParams struct {
	Hostname              string
	// Port overrides the port given in Hostname, if any
	Port                  int
	Protocol              string
	Interface             string
	DestinationMAC        string
	MinTTL                int
	MaxTTL                int
	Queries               int
	Timeout               time.Duration
	FrameSize             int
	ReverseDns            bool
	CollectSourcePublicIP bool
	Tags                  []string
}

// DefaultParams returns the parameters used when the caller sets nothing
func DefaultParams(hostname string) TracerouteParams {
	return TracerouteParams{
		Hostname:              hostname,
		Protocol:              common.DefaultProtocol,
		MinTTL:                common.DefaultFirstTTL,
		MaxTTL:                common.DefaultMaxHops,
		Queries:               common.DefaultQueriesPerHop,
		Timeout:               common.DefaultQueryTimeout,
		FrameSize:             common.DefaultFrameSize,
		ReverseDns:            common.DefaultReverseDns,
		CollectSourcePublicIP: common.DefaultCollectPublicIP,
	}
}
