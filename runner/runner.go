// Package runner turns user facing parameters into a traceroute session and
// assembles the result document around it
package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/iface"
	"github.com/DataDog/datalink-traceroute/localaddr"
	"github.com/DataDog/datalink-traceroute/log"
	"github.com/DataDog/datalink-traceroute/publicip"
	"github.com/DataDog/datalink-traceroute/result"
	"github.com/DataDog/datalink-traceroute/reversedns"
	"github.com/DataDog/datalink-traceroute/telemetry"
	"github.com/DataDog/datalink-traceroute/traceroute"
)

type session interface {
	Run(ctx context.Context) ([]result.TracerouteHop, error)
	Close() error
}

// declared as variables for testing purpose (to be replaced by mock impl during tests)
var (
	startSession = func(cfg traceroute.Config, opts ...traceroute.Option) (session, error) {
		return traceroute.New(cfg, opts...)
	}
	lookupRoute      = localaddr.LookupRoute
	nextHopMAC       = localaddr.NextHopMAC
	interfaceByName  = iface.ByName
	interfaceByIndex = iface.ByIndex
)

type Runner struct {
	publicIPFetcher publicip.Fetcher
	metrics         *telemetry.Metrics
}

// Option customizes a Runner
type Option func(*Runner)

// WithMetrics makes every session record into m
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithPublicIPFetcher replaces the default public IP lookup
func WithPublicIPFetcher(f publicip.Fetcher) Option {
	return func(r *Runner) {
		r.publicIPFetcher = f
	}
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		publicIPFetcher: publicip.NewPublicIPFetcher(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// link is where probes leave the host and who receives them first
type link struct {
	iface   iface.Descriptor
	nextHop net.HardwareAddr
}

// RunTraceroute resolves params, walks the path and returns the annotated
// result document. Reverse DNS and public IP failures only leave their
// fields empty.
func (r *Runner) RunTraceroute(ctx context.Context, params TracerouteParams) (*result.Results, error) {
	protocol, err := common.ParseProtocol(params.Protocol)
	if err != nil {
		return nil, err
	}

	if params.Port < 0 || params.Port > 65535 {
		return nil, &traceroute.ConfigError{Field: "port", Value: params.Port, Reason: "must be between 1 and 65535"}
	}
	dst, port, err := traceroute.ParseTarget(ctx, params.Hostname, common.DefaultPort)
	if err != nil {
		return nil, err
	}
	if params.Port != 0 {
		port = uint16(params.Port)
	}

	l, err := resolveLink(dst, params)
	if err != nil {
		return nil, err
	}
	log.Debugf("tracing %s (%s) via %s, next hop %s", params.Hostname, dst, l.iface.Name, l.nextHop)

	cfg := traceroute.Config{
		Destination:    dst,
		DestinationMAC: l.nextHop,
		Port:           port,
		Protocol:       protocol,
		FirstTTL:       params.MinTTL,
		MaxHops:        params.MaxTTL,
		QueriesPerHop:  params.Queries,
		Timeout:        params.Timeout,
		FrameSize:      params.FrameSize,
		Interface:      l.iface,
	}
	s, err := startSession(cfg, traceroute.WithMetrics(r.metrics))
	if err != nil {
		return nil, err
	}
	defer s.Close()

	results := result.NewResults(result.Params{
		Protocol:  protocol.String(),
		Hostname:  params.Hostname,
		Port:      int(port),
		Interface: l.iface.Name,
		FirstTTL:  params.MinTTL,
		MaxHops:   params.MaxTTL,
		Queries:   params.Queries,
		TimeoutMs: params.Timeout.Milliseconds(),
		FrameSize: params.FrameSize,
	})
	results.Tags = params.Tags
	srcIP, _ := l.iface.SourceIPv4()
	results.Traceroute.Source = result.TracerouteSource{
		IP:  srcIP.String(),
		MAC: l.iface.MAC.String(),
	}
	results.Traceroute.Destination = result.TracerouteDestination{
		IP:      dst.String(),
		NextHop: l.nextHop.String(),
		Port:    port,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	if params.CollectSourcePublicIP && r.publicIPFetcher != nil {
		log.Tracef("collect public ip")
		wg.Add(1)
		go func() {
			defer wg.Done()
			ip, err := r.publicIPFetcher.GetIP(ctx)
			if err != nil {
				log.Debugf("Error getting IP: %s", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			results.Traceroute.Source.PublicIP = ip.String()
		}()
	}

	hops, runErr := s.Run(ctx)
	wg.Wait()
	if runErr != nil {
		return nil, fmt.Errorf("traceroute to %s failed: %w", dst, runErr)
	}

	results.Traceroute.Hops = hops
	results.Normalize()
	if params.ReverseDns {
		if err := reversedns.Enrich(ctx, results, common.DefaultReverseDnsWorkers); err != nil {
			log.Debugf("reverse dns enrichment interrupted: %s", err)
		}
	}
	return results, nil
}

// resolveLink picks the outgoing interface and the next-hop MAC, using the
// explicit params first and the routing and neighbor tables otherwise
func resolveLink(dst netip.Addr, params TracerouteParams) (link, error) {
	var l link
	var route localaddr.Route
	var routeErr error
	if params.Interface == "" || params.DestinationMAC == "" {
		route, routeErr = lookupRoute(dst)
	}

	var err error
	if params.Interface != "" {
		l.iface, err = interfaceByName(params.Interface)
	} else if routeErr != nil {
		return l, fmt.Errorf("no route to %s: %w", dst, routeErr)
	} else {
		l.iface, err = interfaceByIndex(route.IfIndex)
	}
	if err != nil {
		return l, err
	}

	if params.DestinationMAC != "" {
		mac, err := net.ParseMAC(params.DestinationMAC)
		if err != nil {
			return l, &traceroute.ConfigError{Field: "destination MAC", Value: params.DestinationMAC, Reason: "not a hardware address", Err: err}
		}
		l.nextHop = mac
		return l, nil
	}
	if routeErr != nil {
		return l, fmt.Errorf("no route to %s: %w", dst, routeErr)
	}
	if route.IfIndex != l.iface.Index {
		// the gateway of another interface is meaningless here, assume on-link
		log.Debugf("route to %s leaves through #%d, not %s", dst, route.IfIndex, l.iface.Name)
		route = localaddr.Route{IfIndex: l.iface.Index}
	}
	mac, err := nextHopMAC(route, dst)
	if err != nil {
		if errors.Is(err, localaddr.ErrNoNeighbor) {
			return l, fmt.Errorf("could not resolve the next hop MAC, set it explicitly: %w", err)
		}
		return l, err
	}
	l.nextHop = mac
	return l, nil
}
