// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/nixcall/cmd/nixcall/cli"
	"github.com/bureau-foundation/nixcall/lib/nix"
)

type buildParams struct {
	globalParams
	callParams
	OutputJSON bool   `flag:"json"  desc:"print the store paths as a JSON array"`
	Hold       bool   `flag:"hold"  desc:"keep the GC root until interrupted (SIGINT or SIGTERM)"`
	Color      string `flag:"color" desc:"colorize failure reports: auto, always, or never" default:"auto"`
}

func (a *app) buildCommand() *cli.Command {
	var params buildParams

	return &cli.Command{
		Name:    "build",
		Summary: "Build and print every output store path",
		Description: `Run nix-build on FILE or --expr and print each output store path on
its own line, in the order nix-build reports them.

The outputs are registered under a temporary GC root that is removed
when the command exits. Pass --hold to keep them rooted until the
command is interrupted, for example while another process copies them.`,
		Usage: "nixcall build [FILE] [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("build", &params)
		},
		Examples: []cli.Example{
			{
				Description: "Build every output of a package",
				Command:     "nixcall build '<nixpkgs>' -A openssl.all",
			},
			{
				Description: "Build and keep the result rooted while copying it",
				Command:     "nixcall build ./release.nix -A image --hold",
			},
		},
		Run: func(args []string) error {
			return a.runBuild("build", &params, args, func(ctx context.Context, opts *nix.CallOpts) ([]nix.StorePath, *nix.GCRoot, error) {
				return opts.Paths(ctx)
			})
		},
	}
}

func (a *app) pathCommand() *cli.Command {
	var params buildParams

	return &cli.Command{
		Name:    "path",
		Summary: "Build and print the single output store path",
		Description: `Like "nixcall build", but fails unless nix-build reports exactly one
output path.`,
		Usage: "nixcall path [FILE] [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("path", &params)
		},
		Examples: []cli.Example{
			{
				Description: "Print the store path of a single package",
				Command:     "nixcall path --expr '(import <nixpkgs> {}).hello'",
			},
		},
		Run: func(args []string) error {
			return a.runBuild("path", &params, args, func(ctx context.Context, opts *nix.CallOpts) ([]nix.StorePath, *nix.GCRoot, error) {
				path, root, err := opts.Path(ctx)
				if err != nil {
					return nil, nil, err
				}
				return []nix.StorePath{path}, root, nil
			})
		},
	}
}

type buildFunc func(ctx context.Context, opts *nix.CallOpts) ([]nix.StorePath, *nix.GCRoot, error)

// runBuild is shared by build and path. The GC root is released when
// it returns, after printing and after --hold ends.
func (a *app) runBuild(command string, params *buildParams, args []string, build buildFunc) error {
	if _, err := useColor(params.Color, a.stderr); err != nil {
		return err
	}
	opts, err := params.callOpts(args)
	if err != nil {
		return err
	}
	session, err := params.openSession(command, a.stderr)
	if err != nil {
		return err
	}

	interrupted, stop := a.interruptContext(context.Background())
	defer stop()
	ctx, cancel := params.callContext(interrupted)
	defer cancel()

	paths, root, err := build(ctx, opts.WithEnvironment(session.environment))
	if err != nil {
		return a.reportFailure(err, params.Color)
	}
	defer func() {
		if err := root.Close(); err != nil {
			session.logger.Warn("releasing gc root failed", "dir", root.Dir(), "error", err)
		}
	}()

	if params.OutputJSON {
		if err := cli.WriteJSON(a.stdout, paths); err != nil {
			return err
		}
	} else {
		for _, path := range paths {
			if _, err := fmt.Fprintln(a.stdout, path); err != nil {
				return err
			}
		}
	}

	if params.Hold {
		session.logger.Info("holding gc root until interrupted", "dir", root.Dir(), "outputs", len(paths))
		<-interrupted.Done()
	}
	return nil
}
