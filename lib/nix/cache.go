// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

// CacheRequest identifies one evaluation for a [ValueCache]. Two
// requests with equal fields ran the same binary with the same argv and
// environment additions; File names the input file so the cache can
// fold its content into the key.
type CacheRequest struct {
	// Program is the resolved absolute path of the evaluator.
	Program string `cbor:"program"`

	// Args is the complete argument vector.
	Args []string `cbor:"args"`

	// Environment holds the KEY=VALUE entries added to the child's
	// inherited environment.
	Environment []string `cbor:"environment"`

	// File is the input file path, or empty for an inline expression.
	File string `cbor:"file"`

	// NixPath is the NIX_PATH the evaluator sees, inherited or added.
	// It decides what <nixpkgs> and other search paths resolve to.
	NixPath string `cbor:"nix_path,omitempty"`
}

// ValueCache stores the raw stdout of successful evaluations.
//
// Nix evaluation is only as pure as its inputs: an expression that
// imports other files, reads the environment, or uses <nixpkgs> may
// produce different output for an identical request. A cache is
// therefore opt-in, and suited to self-contained expressions.
type ValueCache interface {
	// Lookup returns the stored output for request. A miss is
	// (nil, false, nil).
	Lookup(request CacheRequest) ([]byte, bool, error)

	// Store records output for request. Called only after the
	// evaluator exited successfully and output decoded cleanly.
	Store(request CacheRequest, output []byte) error
}
