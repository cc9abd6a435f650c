// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package nix runs the Nix evaluator (nix-instantiate, nix-build) as a
// subprocess and turns its output into typed Go values or store paths.
//
// A call is described by a [CallOpts], created from either an inline
// expression or a file and refined with an attribute path and string
// arguments:
//
//	opts := nix.Expression(`{ name }: "Hello, ${name}!"`).
//	    ArgStr("name", "Jill")
//	greeting, err := nix.Value[string](ctx, opts)
//
// Three terminal operations execute the call:
//
//   - [Value] evaluates with --eval --json --strict and decodes the JSON
//     printed on stdout into any type.
//   - [CallOpts.Paths] builds with nix-build and returns every output
//     store path, in the order nix-build printed them.
//   - [CallOpts.Path] is Paths restricted to exactly one output.
//
// Builds are rooted in a fresh temporary directory ([GCRoot]) passed to
// nix-build as --out-link. While the GCRoot is open, a concurrent
// nix-collect-garbage cannot delete the outputs. Close it once the
// store paths are no longer needed:
//
//	path, root, err := nix.File("./shell.nix").Path(ctx)
//	if err != nil {
//	    return err
//	}
//	defer root.Close()
//
// Every failure is a *[BuildError]. Its Kind separates a missing Nix
// installation, I/O failures, non-zero exits (with the captured stderr
// lines), undecodable output, and output of the wrong cardinality.
//
// Stdout and stderr are drained concurrently for the whole life of the
// child so that a process writing heavily to both never stalls on a
// full pipe. No call retries, and none times out on its own: pass a
// context with a deadline to bound a call.
//
// Binaries are resolved by [FindBinary]: PATH first, then the
// Determinate Nix profile directory. [Environment] overrides the binary
// names, the GC root parent directory, NIX_PATH, extra environment
// variables, the logger, and an optional [ValueCache] for evaluations.
package nix
