// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for wanlink commands.
//
// Configuration is loaded from a single YAML file specified by the
// WANLINK_CONFIG environment variable or the --config flag. There is
// no automatic discovery; a missing path means built-in defaults.
// Transport child templates may reference role parameters with
// ${placeholder} syntax, expanded from CLI flags at launch time.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath is the environment variable naming the config file,
// checked when --config is not passed.
const EnvConfigPath = "WANLINK_CONFIG"

// EnvTransportExec overrides the transport command for both roles,
// taking precedence over the config file. Mirrors the original
// deployment knob for pointing at a locally installed transport.
const EnvTransportExec = "WANLINK_TRANSPORT_EXEC"

// Config is the master configuration for a wanlink endpoint.
type Config struct {
	// Transport holds the child process templates for the tunnel
	// transport in each role.
	Transport TransportConfig `yaml:"transport"`

	// Bus configures the message bus the liveness monitor uses.
	Bus BusConfig `yaml:"bus"`

	// Heartbeat tunes the liveness monitor.
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

// TransportConfig holds per-role transport child templates.
type TransportConfig struct {
	Server ChildTemplate `yaml:"server"`
	Client ChildTemplate `yaml:"client"`
}

// ChildTemplate describes how to launch one child process. Args and
// Env values may contain ${placeholder} references resolved by Expand.
type ChildTemplate struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// BusConfig addresses the message bus.
type BusConfig struct {
	// Address is the host:port of the Redis server carrying heartbeat
	// packets.
	Address string `yaml:"address"`

	// ChannelPrefix namespaces the pub/sub channel; the tunnel domain
	// ID is appended. Both ends must agree.
	ChannelPrefix string `yaml:"channel_prefix"`
}

// HeartbeatConfig tunes the liveness monitor.
type HeartbeatConfig struct {
	// Period is the initiator's send interval.
	Period Duration `yaml:"period"`

	// PollInterval is the initiator's receive-drain interval.
	PollInterval Duration `yaml:"poll_interval"`

	// WaitTimeout bounds the responder's wait for new data.
	WaitTimeout Duration `yaml:"wait_timeout"`

	// ExpireAfter evicts unacknowledged entries older than this age.
	// Zero disables eviction (the baseline behavior).
	ExpireAfter Duration `yaml:"expire_after"`

	// Binary is the path to the wanlink-heartbeat executable. Empty
	// means auto-detect next to the running executable.
	Binary string `yaml:"binary"`
}

// Duration wraps time.Duration with YAML unmarshalling from strings
// like "500ms" or "1s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration: local Redis, standard
// heartbeat tuning, five-minute pending-ack expiry, and no transport
// commands (those must come from the file or EnvTransportExec).
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			Address: "localhost:6379",
		},
		Heartbeat: HeartbeatConfig{
			Period:       Duration(time.Second),
			PollInterval: Duration(time.Millisecond),
			WaitTimeout:  Duration(500 * time.Millisecond),
			ExpireAfter:  Duration(5 * time.Minute),
		},
	}
}

// Load reads the config file at path, or falls back to EnvConfigPath,
// or returns Default() when neither names a file. Unset fields take
// their default values; the transport command env override is applied
// last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		applyDefaults(config)
	}

	if exec := os.Getenv(EnvTransportExec); exec != "" {
		config.Transport.Server.Command = exec
		config.Transport.Client.Command = exec
	}
	return config, nil
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(config *Config) {
	defaults := Default()
	if config.Bus.Address == "" {
		config.Bus.Address = defaults.Bus.Address
	}
	if config.Heartbeat.Period == 0 {
		config.Heartbeat.Period = defaults.Heartbeat.Period
	}
	if config.Heartbeat.PollInterval == 0 {
		config.Heartbeat.PollInterval = defaults.Heartbeat.PollInterval
	}
	if config.Heartbeat.WaitTimeout == 0 {
		config.Heartbeat.WaitTimeout = defaults.Heartbeat.WaitTimeout
	}
	if config.Heartbeat.ExpireAfter == 0 {
		config.Heartbeat.ExpireAfter = defaults.Heartbeat.ExpireAfter
	}
}

// Expand resolves ${placeholder} references in the template's args and
// env values against vars. Unknown placeholders are an error: a typo
// in a topology file must not silently launch the transport with an
// empty parameter.
func (t ChildTemplate) Expand(vars map[string]string) (ChildTemplate, error) {
	expanded := ChildTemplate{Command: t.Command}

	var missing []string
	resolve := func(name string) string {
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
		}
		return value
	}

	expanded.Args = make([]string, len(t.Args))
	for i, arg := range t.Args {
		expanded.Args[i] = os.Expand(arg, resolve)
	}
	if len(t.Env) > 0 {
		expanded.Env = make(map[string]string, len(t.Env))
		for key, value := range t.Env {
			expanded.Env[key] = os.Expand(value, resolve)
		}
	}

	if len(missing) > 0 {
		return ChildTemplate{}, fmt.Errorf("config: unknown placeholder(s) %v in transport template", missing)
	}
	return expanded, nil
}
