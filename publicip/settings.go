package publicip

import "time"

// MaxTries is the maximum amount of tries to attempt to one service.
const MaxTries = 3

// Timeout sets the time limit of collecting results from different services.
var Timeout = 2 * time.Second

// ipCheckers list of reliable public IP checkers, asked in order
var ipCheckers = []string{
	"https://icanhazip.com/",         // owned by cloudflare
	"https://ipinfo.io/ip",           // GeoIP info provider
	"https://checkip.amazonaws.com/", // Amazon
	"https://api.ipify.org/",         // Dedicated Public IP info and GeoIP info provider
}

// voter is one source of the fallback consensus
type voter struct {
	uri    string
	weight uint
}

// consensusVoters back the checkers up when none of them answered. TLS
// protected sources weigh more.
var consensusVoters = []voter{
	{"https://icanhazip.com/", 3},
	{"https://api.ipify.org", 3},
	{"https://myexternalip.com/raw", 3},
	{"http://ipecho.net/plain", 1},
	{"http://ifconfig.me/ip", 1},
	{"http://ident.me", 1},
	{"http://checkip.amazonaws.com", 1},
	{"http://whatismyip.akamai.com", 1},
}
