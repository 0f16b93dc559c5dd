package result

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NoReply is the address recorded for a query that timed out
const NoReply = "*"

type (
	// Results all the results from a single traceroute run
	Results struct {
		RunID      string     `json:"run_id"`
		Params     Params     `json:"params"`
		Traceroute Traceroute `json:"traceroute"`
		Tags       []string   `json:"tags,omitempty"`
	}

	// Params echoes the configuration the run was made with
	Params struct {
		Protocol  string `json:"protocol"`
		Hostname  string `json:"hostname"`
		Port      int    `json:"port"`
		Interface string `json:"interface"`
		FirstTTL  int    `json:"first_ttl"`
		MaxHops   int    `json:"max_hops"`
		Queries   int    `json:"queries"`
		TimeoutMs int64  `json:"timeout_ms"`
		FrameSize int    `json:"frame_size"`
	}

	HopsStats struct {
		// Count is the number of hops produced
		Count int `json:"count"`
		// Responded is the number of hops with at least one reply
		Responded          int  `json:"responded"`
		ReachedDestination bool `json:"reached_destination"`
		// RTT stats over every reply, in milliseconds
		RttMin float64 `json:"rtt_min"`
		RttAvg float64 `json:"rtt_avg"`
		RttMax float64 `json:"rtt_max"`
	}

	Traceroute struct {
		Source      TracerouteSource      `json:"source"`
		Destination TracerouteDestination `json:"destination"`
		Hops        []TracerouteHop       `json:"hops"`
		Stats       HopsStats             `json:"stats"`
		// ReverseDns maps responder addresses to their PTR names
		ReverseDns map[string][]string `json:"reverse_dns,omitempty"`
	}

	// TracerouteHop is one TTL's worth of probes. QueryResults are in the order
	// the queries were issued and never repeat a responder.
	TracerouteHop struct {
		TTL          uint8                   `json:"ttl"`
		QueryResults []TracerouteQueryResult `json:"queries"`
	}

	// TracerouteQueryResult is the outcome of a single probe
	TracerouteQueryResult struct {
		// RTT is zero when nothing answered
		RTT time.Duration
		// Addr is the responder in dotted quad form, or NoReply
		Addr string
	}

	// TracerouteSource contains result source info
	TracerouteSource struct {
		IP       string `json:"ip"`
		MAC      string `json:"mac"`
		PublicIP string `json:"public_ip,omitempty"`
	}

	// TracerouteDestination contains result destination info
	TracerouteDestination struct {
		IP      string `json:"ip"`
		NextHop string `json:"next_hop_mac"`
		Port    uint16 `json:"port"`
	}
)

// Timeout is the result of a query nobody answered
func Timeout() TracerouteQueryResult {
	return TracerouteQueryResult{Addr: NoReply}
}

// IsTimeout reports whether the query got no reply
func (q TracerouteQueryResult) IsTimeout() bool {
	return q.Addr == NoReply
}

type queryResultJSON struct {
	RttMs float64 `json:"rtt_ms"`
	Addr  string  `json:"addr"`
}

func (q TracerouteQueryResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(queryResultJSON{RttMs: durationMs(q.RTT), Addr: q.Addr})
}

func (q *TracerouteQueryResult) UnmarshalJSON(data []byte) error {
	var raw queryResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q.RTT = time.Duration(math.Round(raw.RttMs * float64(time.Millisecond)))
	q.Addr = raw.Addr
	return nil
}

// HasAddr reports whether addr already answered within this hop
func (h TracerouteHop) HasAddr(addr string) bool {
	for _, q := range h.QueryResults {
		if q.Addr == addr {
			return true
		}
	}
	return false
}

// Responded reports whether any query of the hop got an answer
func (h TracerouteHop) Responded() bool {
	for _, q := range h.QueryResults {
		if !q.IsTimeout() {
			return true
		}
	}
	return false
}

// String renders the hop as one line: the TTL followed by every query's RTT
// and responder, "*" standing for a query that timed out.
func (h TracerouteHop) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%2d", h.TTL)
	for _, q := range h.QueryResults {
		if q.IsTimeout() {
			sb.WriteString("  *")
			continue
		}
		fmt.Fprintf(&sb, "  %.3fms %s", durationMs(q.RTT), q.Addr)
	}
	return sb.String()
}

// NewResults returns an empty document with a fresh run id
func NewResults(params Params) *Results {
	return &Results{
		RunID:  newRunID(),
		Params: params,
	}
}

// Normalize computes the hop statistics
func (r *Results) Normalize() {
	stats := HopsStats{Count: len(r.Traceroute.Hops)}
	var total float64
	var replies int
	for _, hop := range r.Traceroute.Hops {
		if hop.Responded() {
			stats.Responded++
		}
		for _, q := range hop.QueryResults {
			if q.IsTimeout() {
				continue
			}
			if q.Addr == r.Traceroute.Destination.IP {
				stats.ReachedDestination = true
			}
			rtt := durationMs(q.RTT)
			if replies == 0 || rtt < stats.RttMin {
				stats.RttMin = rtt
			}
			if rtt > stats.RttMax {
				stats.RttMax = rtt
			}
			total += rtt
			replies++
		}
	}
	if replies > 0 {
		stats.RttAvg = total / float64(replies)
	}
	r.Traceroute.Stats = stats
}

// Addrs returns every distinct responder, in order of first appearance
func (r *Results) Addrs() []string {
	seen := make(map[string]struct{})
	var addrs []string
	for _, hop := range r.Traceroute.Hops {
		for _, q := range hop.QueryResults {
			if q.IsTimeout() {
				continue
			}
			if _, ok := seen[q.Addr]; ok {
				continue
			}
			seen[q.Addr] = struct{}{}
			addrs = append(addrs, q.Addr)
		}
	}
	return addrs
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// newRunID returns a time ordered UUID, base64 encoded to keep it short
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return base64.RawURLEncoding.EncodeToString(id[:])
}
