// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint helpers for nixcall
// commands: reporting an error to stderr before or without the
// structured logger, and choosing the process exit code.
//
// Command code reports errors by returning them; only main() calls
// into this package.
package process
