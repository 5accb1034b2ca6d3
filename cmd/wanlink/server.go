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

func serverCommand() *cli.Command {
	var (
		configPath    string
		publicAddress string
		internalPort  int
		domain        int
		noHeartbeat   bool
	)

	return &cli.Command{
		Name:    "server",
		Aliases: []string{"tcpwanserver"},
		Summary: "run the publicly addressable end of the tunnel",
		Description: "wanlink server runs the publicly addressable end of the tunnel:\n" +
			"the transport listens on the given public address and the liveness\n" +
			"monitor answers heartbeat probes arriving from the client side.",
		Usage: "wanlink server --public-address A --internal-port P [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to config file (default: $"+config.EnvConfigPath+")")
			flags.StringVar(&publicAddress, "public-address", "", "WAN-reachable address:port the transport advertises (required)")
			flags.IntVar(&internalPort, "internal-port", 0, "LAN-side port the transport binds (required)")
			flags.IntVar(&domain, "domain", 0, "tunnel session domain id")
			flags.BoolVar(&noHeartbeat, "no-heartbeat", false, "run the transport without a liveness monitor")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "serve domain 3 behind a NAT mapping to port 7500",
				Command:     "wanlink server --public-address 203.0.113.9:7500 --internal-port 7500 --domain 3",
			},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if publicAddress == "" {
				return fmt.Errorf("--public-address is required")
			}
			if internalPort == 0 {
				return fmt.Errorf("--internal-port is required")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			transport, err := cfg.Transport.Server.Expand(map[string]string{
				"public_address": publicAddress,
				"internal_port":  strconv.Itoa(internalPort),
				"domain":         strconv.Itoa(domain),
			})
			if err != nil {
				return err
			}

			return launchTunnel(tunnelParams{
				name:          "server",
				transport:     transport,
				heartbeatRole: "responder",
				domain:        domain,
				noHeartbeat:   noHeartbeat,
				configPath:    configPath,
				config:        cfg,
			})
		},
	}
}
