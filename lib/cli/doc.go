// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework shared by the wanlink
// binaries.
//
// The central type is [Command], a named subcommand with optional nested
// [Command.Subcommands], a [pflag.FlagSet] factory, and a Run function.
// Binaries assemble a tree in their main package and dispatch via
// [Command.Execute], which handles flag parsing, subcommand routing, and
// help output.
//
// A Run function that needs a specific process exit status returns
// [ExitError]; main checks for the ExitCode method on the returned error
// to distinguish a handled non-zero exit from an unexpected error.
package cli
