package cmd

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DataDog/datalink-traceroute/runner"
)

// envPrefix namespaces the environment variables mirroring the flags, e.g.
// DLTRACE_MAX_TTL for --max-ttl
const envPrefix = "dltrace"

// newViper layers flags over DLTRACE_* variables over flag defaults
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	return v, nil
}

func paramsFromViper(v *viper.Viper, hostname string) runner.TracerouteParams {
	return runner.TracerouteParams{
		Hostname:              hostname,
		Port:                  v.GetInt("port"),
		Protocol:              v.GetString("proto"),
		Interface:             v.GetString("interface"),
		DestinationMAC:        v.GetString("dst-mac"),
		MinTTL:                v.GetInt("first-ttl"),
		MaxTTL:                v.GetInt("max-ttl"),
		Queries:               v.GetInt("queries"),
		Timeout:               time.Duration(v.GetInt("timeout")) * time.Millisecond,
		FrameSize:             v.GetInt("frame-size"),
		ReverseDns:            v.GetBool("reverse-dns"),
		CollectSourcePublicIP: v.GetBool("source-public-ip"),
		Tags:                  v.GetStringSlice("tag"),
	}
}
