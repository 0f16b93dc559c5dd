// Package publicip discovers the address the host is seen with from the
// internet, reported next to the traceroute source
package publicip

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/DataDog/datalink-traceroute/cache"
	"github.com/DataDog/datalink-traceroute/log"
)

const defaultPublicIPCacheExpiration = 2 * time.Hour

//go:generate mockgen -source=$GOFILE -package=$GOPACKAGE -destination=mock_fetcher.go

// Fetcher returns the public IPv4 address of the host
type Fetcher interface {
	GetIP(ctx context.Context) (net.IP, error)
}

type PublicIPFetcher struct {
	client    *http.Client
	checkers  []string
	consensus func(context.Context) (net.IP, error)
}

func NewPublicIPFetcher() *PublicIPFetcher {
	return &PublicIPFetcher{
		client:   &http.Client{Timeout: Timeout},
		checkers: ipCheckers,
		consensus: func(ctx context.Context) (net.IP, error) {
			return getConsensusIP(ctx, consensusVoters)
		},
	}
}

// GetIP asks the checkers first and falls back to a consensus vote. The
// answer is cached for two hours.
func (p *PublicIPFetcher) GetIP(ctx context.Context) (net.IP, error) {
	return cache.GetContext(ctx, cache.Key(cache.NamespacePublicIP, "source"), func(ctx context.Context) (net.IP, error) {
		ip, err := GetPublicIP(ctx, p.client, p.checkers)
		if err == nil {
			log.Debugf("Public IP fetched: %s", ip)
			return ip, nil
		}
		log.Debugf("ip checkers failed (%s), falling back to consensus", err)
		if p.consensus == nil {
			return nil, err
		}
		ip, err = p.consensus(ctx)
		if err != nil {
			return nil, err
		}
		log.Debugf("Public IP from consensus: %s", ip)
		return ip, nil
	}, defaultPublicIPCacheExpiration)
}
