package publicip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	externalip "github.com/glendc/go-external-ip"

	"github.com/DataDog/datalink-traceroute/log"
)

// ErrNoIP is returned when no source produced an IPv4 address
var ErrNoIP = errors.New("no public IPv4 address found")

// newBackOff is a variable so tests can retry without sleeping
var newBackOff = func() backoff.BackOff {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 3 * time.Second
	return expBackoff
}

// GetPublicIP asks each checker in turn and returns the first IPv4 answer
func GetPublicIP(ctx context.Context, client *http.Client, checkers []string) (net.IP, error) {
	for _, ipChecker := range checkers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ip, err := getPublicIPUsingIPChecker(ctx, client, ipChecker)
		if err != nil {
			log.Debugf("error fetching: %s, %s", ipChecker, err)
			continue
		}
		return ip, nil
	}
	return nil, ErrNoIP
}

func getPublicIPUsingIPChecker(ctx context.Context, client *http.Client, dest string) (net.IP, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dest, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}

	operation := func() (net.IP, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch req: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
		if err != nil {
			return nil, fmt.Errorf("failed to read content: %w", err)
		}

		// client errors won't get better with retries
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		tb := strings.TrimSpace(string(body))
		ip := net.ParseIP(tb).To4()
		if ip == nil {
			return nil, backoff.Permanent(fmt.Errorf("not an IPv4 address: %q", tb))
		}
		return ip, nil
	}
	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(MaxTries),
	)
	if err != nil {
		return nil, fmt.Errorf("backoff retry error: %w", err)
	}
	return result, nil
}

// getConsensusIP runs a weighted vote over voters, restricted to IPv4.
// The vote itself can't be cancelled so ctx only bounds how long we wait.
func getConsensusIP(ctx context.Context, voters []voter) (net.IP, error) {
	consensus := externalip.NewConsensus(externalip.DefaultConsensusConfig().WithTimeout(Timeout), nil)
	for _, v := range voters {
		if err := consensus.AddVoter(externalip.NewHTTPSource(v.uri), v.weight); err != nil {
			return nil, err
		}
	}
	if err := consensus.UseIPProtocol(4); err != nil {
		return nil, err
	}

	type vote struct {
		ip  net.IP
		err error
	}
	done := make(chan vote, 1)
	go func() {
		ip, err := consensus.ExternalIP()
		done <- vote{ip, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case v := <-done:
		if v.err != nil {
			return nil, v.err
		}
		ip := v.ip.To4()
		if ip == nil {
			return nil, ErrNoIP
		}
		return ip, nil
	}
}
