// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/log"
	"github.com/DataDog/datalink-traceroute/result"
	"github.com/DataDog/datalink-traceroute/runner"
	"github.com/DataDog/datalink-traceroute/traceroute"
)

// runTraceroute is replaced in tests
var runTraceroute = func(ctx context.Context, params runner.TracerouteParams) (*result.Results, error) {
	return runner.NewRunner().RunTraceroute(ctx, params)
}

// NewCmdRoot builds the traceroute command with its subcommands
func NewCmdRoot() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "datalink-traceroute [target]",
		Short: "Link-layer traceroute CLI",
		Long: `Traces the route to an IPv4 target by writing whole Ethernet frames
with increasing TTLs and listening for ICMP time-exceeded and
destination-unreachable replies. Needs raw socket privileges.

Every flag can also be set through a DLTRACE_ environment variable,
e.g. DLTRACE_MAX_TTL=20.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd.Flags())
			if err != nil {
				return err
			}
			if err := configureLogging(v.GetBool("verbose"), v.GetString("log-level")); err != nil {
				return err
			}

			params := paramsFromViper(v, args[0])
			results, err := runTraceroute(cmd.Context(), params)
			if err != nil {
				te := traceroute.ClassifyError(err)
				if v.GetBool("json") {
					_ = writeJSON(cmd.OutOrStdout(), traceroute.ErrorResponse{Code: te.Code, Message: te.Message})
				}
				return fmt.Errorf("%s: %w", te.Code, err)
			}
			if v.GetBool("json") {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			writeText(cmd.OutOrStdout(), results)
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.StringP("proto", "P", common.DefaultProtocol, "Protocol to use (udp, tcp, icmp)")
	flags.IntP("port", "p", 0, "Destination port, overrides the one in target (default 33434)")
	flags.StringP("interface", "i", "", "Interface to send on (default: the one routing to target)")
	flags.String("dst-mac", "", "Next hop MAC address (default: resolved from the neighbor table)")
	flags.IntP("first-ttl", "f", common.DefaultFirstTTL, "First TTL")
	flags.IntP("max-ttl", "m", common.DefaultMaxHops, "Maximum TTL")
	flags.IntP("queries", "q", common.DefaultQueriesPerHop, "Probes per hop")
	flags.Int("timeout", int(common.DefaultQueryTimeout.Milliseconds()), "Timeout per probe (ms)")
	flags.Int("frame-size", common.DefaultFrameSize, "Size of every probe frame in bytes, Ethernet header included")
	flags.Bool("reverse-dns", common.DefaultReverseDns, "Enrich IPs with Reverse DNS names")
	flags.Bool("source-public-ip", common.DefaultCollectPublicIP, "Report the public IP of the source")
	flags.StringSlice("tag", nil, "Tag to attach to the result, may be repeated")
	flags.Bool("json", false, "Print the result as JSON")
	flags.BoolP("verbose", "v", false, "verbose")
	flags.String("log-level", log.LevelInfo.String(), "Log level (error, warn, info, debug, trace)")

	rootCmd.AddCommand(newCmdInterfaces())
	rootCmd.AddCommand(newCmdVersion())
	return rootCmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewCmdRoot().ExecuteContext(ctx); err != nil {
		stop()
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configureLogging(verbose bool, level string) error {
	if verbose {
		log.SetVerbose(true)
		return nil
	}
	l, err := log.ParseLogLevel(level)
	if err != nil {
		return err
	}
	log.SetLogLevel(l)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	jsonStr, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("JSON marshalling failed: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonStr))
	return err
}

// writeText prints the classic traceroute layout, one line per hop
func writeText(w io.Writer, res *result.Results) {
	tr := res.Traceroute
	fmt.Fprintf(w, "traceroute to %s (%s) from %s via %s, %d hops max, %d byte frames\n",
		res.Params.Hostname, tr.Destination.IP, tr.Source.IP, res.Params.Interface, res.Params.MaxHops, res.Params.FrameSize)
	for _, hop := range tr.Hops {
		line := hop.String()
		for _, q := range hop.QueryResults {
			if names, ok := tr.ReverseDns[q.Addr]; ok && len(names) > 0 {
				line += fmt.Sprintf(" [%s=%s]", q.Addr, names[0])
			}
		}
		fmt.Fprintln(w, line)
	}
	if tr.Source.PublicIP != "" {
		fmt.Fprintf(w, "public source IP: %s\n", tr.Source.PublicIP)
	}
}
