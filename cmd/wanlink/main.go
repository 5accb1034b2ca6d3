// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

// The wanlink binary launches and supervises one end of a WAN tunnel:
// the transport process that carries traffic, plus a wanlink-heartbeat
// child that monitors tunnel liveness from the inside. Supervision
// ends at the first child exit or on operator interrupt, and the
// process exit code reflects which of the two it was.
package main

import (
	"fmt"
	"os"

	"github.com/relayforge/wanlink/lib/cli"
	"github.com/relayforge/wanlink/lib/process"
	"github.com/relayforge/wanlink/lib/version"
)

func main() {
	process.Exit(run())
}

func run() error {
	root := &cli.Command{
		Name:    "wanlink",
		Summary: "WAN tunnel launcher and supervisor",
		Description: "wanlink launches one end of a relayed WAN tunnel: the transport\n" +
			"process plus a liveness monitor probing the tunnel from the inside.",
		Subcommands: []*cli.Command{
			serverCommand(),
			clientCommand(),
			{
				Name:    "version",
				Summary: "print version information",
				Run: func(args []string) error {
					fmt.Println("wanlink", version.Full())
					return nil
				},
			},
		},
	}
	return root.Execute(os.Args[1:])
}
