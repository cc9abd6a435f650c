// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/nixcall/cmd/nixcall/cli"
)

// app carries the process-level dependencies of every command.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// interruptContext returns a context cancelled on SIGINT or
	// SIGTERM. Tests replace it.
	interruptContext func(parent context.Context) (context.Context, context.CancelFunc)
}

func notifyInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Root returns the nixcall command tree writing results to stdout and
// reports, logs, and help to stderr.
func Root(stdout, stderr io.Writer) *cli.Command {
	application := &app{
		stdout:           stdout,
		stderr:           stderr,
		interruptContext: notifyInterrupt,
	}
	return application.root()
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:    "nixcall",
		Summary: "Run the Nix evaluator and builder as subprocesses",
		Description: `nixcall runs nix-instantiate and nix-build for a Nix file or an inline
expression, with optional --argstr arguments and an -A attribute path.

"eval" prints the strictly evaluated value as JSON (or CBOR). "build"
and "path" print store paths, keeping them alive against garbage
collection through a temporary GC root for as long as the command runs.`,
		HelpOutput: a.stderr,
		Subcommands: []*cli.Command{
			a.evalCommand(),
			a.buildCommand(),
			a.pathCommand(),
			a.versionCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Evaluate an attribute of a file",
				Command:     "nixcall eval ./release.nix -A meta.version",
			},
			{
				Description: "Build a package and print its output paths",
				Command:     "nixcall build --expr '(import <nixpkgs> {}).hello'",
			},
		},
	}
}
