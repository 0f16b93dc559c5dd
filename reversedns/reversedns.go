// Package reversedns resolves PTR names for the responders of a traceroute
package reversedns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DataDog/datalink-traceroute/cache"
	"github.com/DataDog/datalink-traceroute/log"
	"github.com/DataDog/datalink-traceroute/result"
)

const (
	reverseDnsDefaultTimeout = 5 * time.Second
	reverseDnsCacheTTL       = 10 * time.Minute
)

// LookupAddrFn is defined as variable to ease testing
var LookupAddrFn = net.DefaultResolver.LookupAddr

// GetReverseDnsForIP returns the PTR names of addr, trailing dots removed.
// Successful answers are cached.
func GetReverseDnsForIP(ctx context.Context, addr netip.Addr) ([]string, error) {
	if !addr.IsValid() {
		return nil, errors.New("invalid IP address")
	}
	return cache.GetContext(ctx, cache.Key(cache.NamespaceReverseDns, addr.String()), func(ctx context.Context) ([]string, error) {
		return GetReverseDns(ctx, addr.String())
	}, reverseDnsCacheTTL)
}

// GetReverseDns returns the hostnames for the given IP address as a string.
func GetReverseDns(ctx context.Context, ipAddr string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, reverseDnsDefaultTimeout)
	defer cancel()
	rawReverseDnsNames, err := LookupAddrFn(ctx, ipAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to get reverse dns: %w", err)
	}

	reverseDnsNames := []string{}
	for _, name := range rawReverseDnsNames {
		reverseDnsNames = append(reverseDnsNames, strings.TrimRight(name, "."))
	}
	return reverseDnsNames, nil
}

// Enrich fills res.Traceroute.ReverseDns for every responder, running at most
// workers lookups at once. Failed or empty lookups are left out of the map;
// only cancellation of ctx is returned as an error.
func Enrich(ctx context.Context, res *result.Results, workers int) error {
	addrs := res.Addrs()
	if len(addrs) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	names := make(map[string][]string, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, a := range addrs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			addr, err := netip.ParseAddr(a)
			if err != nil {
				log.Debugf("reverse dns: skipping %q: %s", a, err)
				return nil
			}
			ptr, err := GetReverseDnsForIP(gctx, addr)
			if err != nil {
				log.Debugf("reverse dns for %s: %s", a, err)
				return nil
			}
			if len(ptr) == 0 {
				return nil
			}
			mu.Lock()
			names[a] = ptr
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	if len(names) > 0 {
		res.Traceroute.ReverseDns = names
	}
	return err
}
