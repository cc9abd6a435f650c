// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for nixcall.
//
// Configuration comes from a single file named by the --config flag or
// the NIXCALL_CONFIG environment variable (both via [Resolve]), or an
// explicit path ([LoadFile]). With neither, [Default] is used as is.
// There is no ~/.config discovery and no file search, and no
// environment variable overrides a value set in the file.
//
// The file may carry environment-specific sections (development,
// production) that override base values when [Config].Environment
// matches. Production without its own section logs at warn level.
//
// Variable expansion runs on path fields after loading: ${HOME} and
// ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Nix, GCRoot, Cache, Log
//   - [Default] -- a Config with development defaults
//   - [Resolve] and [LoadFile] -- the entry points for loading
//
// This package depends on no other nixcall packages.
package config
