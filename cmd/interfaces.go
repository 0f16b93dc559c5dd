// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DataDog/datalink-traceroute/iface"
)

func newCmdInterfaces() *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces",
		Short: "List the interfaces a traceroute can be sent from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := iface.Lister()
			if err != nil {
				return err
			}
			for _, d := range all {
				usable := ""
				if !d.HasEthernetMAC() || len(d.Addrs) == 0 {
					usable = " (unusable: needs an Ethernet MAC and an IPv4 address)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", d, usable)
			}
			return nil
		},
	}
}
