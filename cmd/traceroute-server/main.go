// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package main provides the traceroute HTTP server binary
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DataDog/datalink-traceroute/common"
	dllog "github.com/DataDog/datalink-traceroute/log"
	"github.com/DataDog/datalink-traceroute/server"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "datalink-traceroute-server",
		Short: "Traceroute HTTP server",
		Long: `HTTP server that provides link-layer traceroutes on GET /traceroute and
prometheus metrics on GET /metrics. Flags may also be set through
DLTRACE_SERVER_ environment variables.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.SetEnvPrefix("dltrace_server")
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			level, err := dllog.ParseLogLevel(v.GetString("log-level"))
			if err != nil {
				return err
			}
			dllog.SetLogLevel(level)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			addr := v.GetString("addr")
			log.Printf("Starting traceroute HTTP server on %s", addr)
			log.Printf("Log level set to: %s", level)
			log.Printf("Example usage: curl 'http://localhost%s/traceroute?target=example.com&protocol=udp'", addr)
			return server.NewServer().Start(ctx, addr)
		},
	}
	rootCmd.Flags().StringP("addr", "a", common.DefaultServerAddr, "HTTP server address to listen on")
	rootCmd.Flags().StringP("log-level", "l", "info", "Log level (error, warn, info, debug, trace)")
	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
