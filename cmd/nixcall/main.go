// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// nixcall evaluates and builds Nix expressions from the command line.
// See "nixcall --help".
package main

import (
	"os"

	"github.com/bureau-foundation/nixcall/cmd/nixcall/commands"
	"github.com/bureau-foundation/nixcall/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	return commands.Root(os.Stdout, os.Stderr).Execute(os.Args[1:])
}
