// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package evalcache is an on-disk [nix.ValueCache] for the JSON output
// of nix-instantiate --eval.
//
// Each entry is addressed by a BLAKE3 keyed hash over the deterministic
// CBOR encoding of the [nix.CacheRequest] (resolved evaluator path,
// argument vector, environment additions, absolute input file path)
// plus the BLAKE3 digest of the input file's content. Editing the file
// passed to nix.File therefore invalidates its entries. Files it
// imports, <nixpkgs> lookups, and builtins.getEnv are not tracked: the
// cache is opt-in and meant for self-contained expressions.
//
// Entries are CBOR records holding the payload compressed with zstd
// (the default; evaluator output is JSON text) or LZ4, or stored raw
// when compression would not shrink it. Writes go to a temporary file
// that is renamed into place, so readers never see a partial entry.
// Entries that fail to decode are deleted and reported as misses.
//
// Layout:
//
//	<dir>/<first two hex digits>/<64 hex digits>.entry
package evalcache
