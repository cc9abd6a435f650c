// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/nixcall/cmd/nixcall/cli"
	"github.com/bureau-foundation/nixcall/lib/nix"
	"github.com/bureau-foundation/nixcall/lib/version"
)

type versionParams struct {
	globalParams
	Nix bool `flag:"nix" desc:"also report the configured nix-instantiate version"`
}

func (a *app) versionCommand() *cli.Command {
	var params versionParams

	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Usage:   "nixcall version [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("version", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if _, err := fmt.Fprintf(a.stdout, "nixcall %s\n", version.Full()); err != nil {
				return err
			}
			if !params.Nix {
				return nil
			}

			session, err := params.openSession("version", a.stderr)
			if err != nil {
				return err
			}
			ctx, cancel := params.callContext(context.Background())
			defer cancel()

			output, err := nix.Run(ctx, session.environment, session.config.Nix.Instantiate,
				[]string{"--version"}, nix.LinesDecoder())
			if err != nil {
				return a.reportFailure(err, "auto")
			}
			_, err = fmt.Fprintf(a.stdout, "  Nix: %s\n", strings.Join(output, " "))
			return err
		},
	}
}
