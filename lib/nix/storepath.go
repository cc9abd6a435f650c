// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"fmt"
	"strings"
)

// StorePath is a path printed by nix-build for one build output. It is
// a plain value: comparable, usable as a map key, and it owns nothing on
// disk. Whether the path still exists is governed by the [GCRoot]
// returned alongside it.
type StorePath struct {
	path string
}

// NewStorePath wraps path without validating it.
func NewStorePath(path string) StorePath {
	return StorePath{path: path}
}

// Path returns the filesystem path.
func (p StorePath) Path() string {
	return p.path
}

// String returns the filesystem path.
func (p StorePath) String() string {
	return p.path
}

// MarshalText encodes the path as a plain string in JSON and CBOR.
func (p StorePath) MarshalText() ([]byte, error) {
	return []byte(p.path), nil
}

// UnmarshalText decodes a path written by MarshalText.
func (p *StorePath) UnmarshalText(text []byte) error {
	p.path = string(text)
	return nil
}

// Entry returns the top-level store entry containing this path. See
// [StoreDirectory].
func (p StorePath) Entry() (string, error) {
	return StoreDirectory(p.path)
}

// nixStorePrefix is the standard Nix store root directory.
const nixStorePrefix = "/nix/store/"

// StoreDirectory extracts the Nix store directory from a path within it.
// A Nix store directory is the first path component after /nix/store/:
//
//	"/nix/store/abc-hello-2.12/bin/hello" → "/nix/store/abc-hello-2.12"
//	"/nix/store/abc-hello-2.12"           → "/nix/store/abc-hello-2.12"
//
// Returns an error for paths not under /nix/store/ or paths that are
// exactly /nix/store/ with no entry name.
func StoreDirectory(path string) (string, error) {
	if !strings.HasPrefix(path, nixStorePrefix) {
		return "", fmt.Errorf("path %q is not under /nix/store/", path)
	}

	remainder := path[len(nixStorePrefix):]
	if remainder == "" {
		return "", fmt.Errorf("path %q has no store entry name", path)
	}

	slashIndex := strings.IndexByte(remainder, '/')
	if slashIndex == -1 {
		return path, nil
	}
	return path[:len(nixStorePrefix)+slashIndex], nil
}
