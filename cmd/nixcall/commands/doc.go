// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the nixcall command tree.
//
// Every command resolves its configuration (--config, then
// NIXCALL_CONFIG, then built-in defaults), builds a [nix.Environment]
// from it, and hands a [nix.CallOpts] built from its flags to the
// library. A failed Nix invocation is rendered as a report on stderr
// and the command returns a [cli.ExitError], so main prints nothing
// further.
package commands
