// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

// The wanlink-heartbeat binary runs one role of the tunnel liveness
// monitor. An initiator publishes sequenced heartbeats and logs the
// round-trip time of each acknowledgement; a responder acknowledges
// every heartbeat it observes. Both roles exchange packets over the
// Redis bus carried by the tunnel transport, so a healthy heartbeat
// stream is direct evidence the tunnel itself is passing traffic.
//
// It is normally launched as a child of wanlink, but runs standalone
// for debugging a deployed tunnel.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/relayforge/wanlink/bus"
	"github.com/relayforge/wanlink/heartbeat"
	"github.com/relayforge/wanlink/lib/cli"
	"github.com/relayforge/wanlink/lib/config"
	"github.com/relayforge/wanlink/lib/process"
	"github.com/relayforge/wanlink/lib/version"
)

func main() {
	process.Exit(run())
}

func run() error {
	var (
		configPath  string
		domain      int
		busAddress  string
		period      time.Duration
		expireAfter time.Duration
		showVersion bool
	)

	root := &cli.Command{
		Name:    "wanlink-heartbeat",
		Summary: "tunnel liveness monitor",
		Description: "wanlink-heartbeat probes tunnel liveness over the message bus.\n" +
			"The initiator role sends sequenced heartbeats and measures the\n" +
			"round-trip time of each acknowledgement; the responder role\n" +
			"acknowledges every heartbeat it observes.",
		Usage: "wanlink-heartbeat <initiator|responder> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("wanlink-heartbeat", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to config file (default: $"+config.EnvConfigPath+")")
			flags.IntVar(&domain, "domain", 0, "tunnel session domain id")
			flags.StringVar(&busAddress, "bus", "", "Redis bus address (overrides config)")
			flags.DurationVar(&period, "period", 0, "heartbeat send interval (overrides config)")
			flags.DurationVar(&expireAfter, "expire-after", 0, "evict unacknowledged entries older than this (overrides config)")
			flags.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "probe domain 3 through a local Redis",
				Command:     "wanlink-heartbeat initiator --domain 3 --bus localhost:6379",
			},
			{
				Description: "answer probes on the server side",
				Command:     "wanlink-heartbeat responder --domain 3",
			},
		},
		Run: func(args []string) error {
			if showVersion {
				fmt.Printf("wanlink-heartbeat %s\n", version.Info())
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("exactly one role argument required: initiator or responder")
			}
			role := args[0]
			if role != "initiator" && role != "responder" {
				return fmt.Errorf("unknown role %q: want initiator or responder", role)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if busAddress != "" {
				cfg.Bus.Address = busAddress
			}
			if period > 0 {
				cfg.Heartbeat.Period = config.Duration(period)
			}
			if expireAfter > 0 {
				cfg.Heartbeat.ExpireAfter = config.Duration(expireAfter)
			}

			return runRole(role, domain, cfg)
		},
	}

	return root.Execute(os.Args[1:])
}

func runRole(role string, domain int, cfg *config.Config) error {
	logger := cli.NewCommandLogger().With("role", role, "domain", domain)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	// An unreachable bus is fatal before the monitoring loop starts:
	// a monitor that silently retries would report nothing while the
	// operator believes the tunnel is being watched.
	endpoint, err := bus.DialRedis(ctx, bus.RedisConfig{
		Address: cfg.Bus.Address,
		Channel: bus.Channel(cfg.Bus.ChannelPrefix, domain),
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer endpoint.Close()

	logger.Info("heartbeat monitor starting",
		"bus", cfg.Bus.Address,
		"period", cfg.Heartbeat.Period.Std())

	switch role {
	case "initiator":
		initiator, err := heartbeat.NewInitiator(heartbeat.InitiatorConfig{
			Bus:          endpoint,
			Period:       cfg.Heartbeat.Period.Std(),
			PollInterval: cfg.Heartbeat.PollInterval.Std(),
			ExpireAfter:  cfg.Heartbeat.ExpireAfter.Std(),
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		return initiator.Run(ctx)
	case "responder":
		responder, err := heartbeat.NewResponder(heartbeat.ResponderConfig{
			Bus:         endpoint,
			WaitTimeout: cfg.Heartbeat.WaitTimeout.Std(),
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		return responder.Run(ctx)
	}
	return fmt.Errorf("unknown role %q", role)
}
