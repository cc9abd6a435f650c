// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for nixcall packages.
//
// [WriteScript] writes an executable /bin/sh script into the test's
// temporary directory. Tests use such scripts as stand-ins for
// nix-instantiate and nix-build so that process handling (argument
// vectors, exit codes, interleaved stdout and stderr) is exercised
// without a Nix installation. [ArgumentRecorder] is the shell fragment
// that saves the script's argv for later inspection with
// [ReadArguments].
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with time.After fallback) so that a deadlocked subprocess
// fails the test instead of hanging the test binary.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no nixcall-internal dependencies.
package testutil
