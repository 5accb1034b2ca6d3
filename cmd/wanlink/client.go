// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/relayforge/wanlink/lib/cli"
	"github.com/relayforge/wanlink/lib/config"
)

func clientCommand() *cli.Command {
	var (
		configPath    string
		serverAddress string
		heartbeatRole string
		domain        int
		noHeartbeat   bool
	)

	return &cli.Command{
		Name:    "client",
		Aliases: []string{"tcpwanclient"},
		Summary: "run the relayed end of the tunnel",
		Description: "wanlink client runs the relayed end of the tunnel: the transport\n" +
			"dials out to the server's public address and the liveness monitor\n" +
			"probes the tunnel with sequenced heartbeats, logging each round trip.",
		Usage: "wanlink client --server-address A [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("client", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to config file (default: $"+config.EnvConfigPath+")")
			flags.StringVar(&serverAddress, "server-address", "", "public address:port of the wanlink server (required)")
			flags.StringVar(&heartbeatRole, "heartbeat-role", "initiator", "liveness monitor role: initiator or responder")
			flags.IntVar(&domain, "domain", 0, "tunnel session domain id")
			flags.BoolVar(&noHeartbeat, "no-heartbeat", false, "run the transport without a liveness monitor")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "join domain 3 through the server at 203.0.113.9",
				Command:     "wanlink client --server-address 203.0.113.9:7500 --domain 3",
			},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if serverAddress == "" {
				return fmt.Errorf("--server-address is required")
			}
			if heartbeatRole != "initiator" && heartbeatRole != "responder" {
				return fmt.Errorf("invalid --heartbeat-role %q: want initiator or responder", heartbeatRole)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			transport, err := cfg.Transport.Client.Expand(map[string]string{
				"server_address": serverAddress,
				"domain":         strconv.Itoa(domain),
			})
			if err != nil {
				return err
			}

			return launchTunnel(tunnelParams{
				name:          "client",
				transport:     transport,
				heartbeatRole: heartbeatRole,
				domain:        domain,
				noHeartbeat:   noHeartbeat,
				configPath:    configPath,
				config:        cfg,
			})
		},
	}
}
