// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// gcRootPattern names per-call GC root directories.
const gcRootPattern = "nixcall-gcroot-*"

// GCRoot owns a temporary directory that nix-build writes its
// --out-link symlinks into. Nix registers each symlink as an indirect
// GC root, so the outputs it points at survive garbage collection for
// as long as the symlink exists. Close removes the directory and with
// it the protection.
//
// A GCRoot that becomes unreachable without Close is removed by a
// runtime cleanup, but the timing of that is up to the garbage
// collector: always Close explicitly.
type GCRoot struct {
	dir    string
	logger *slog.Logger

	cleanup   runtime.Cleanup
	closeOnce sync.Once
	closeErr  error
}

// NewGCRoot creates a fresh, uniquely named directory under parent.
func NewGCRoot(parent string, logger *slog.Logger) (*GCRoot, error) {
	if logger == nil {
		logger = discardLogger
	}
	dir, err := os.MkdirTemp(parent, gcRootPattern)
	if err != nil {
		return nil, fmt.Errorf("creating gc root directory in %s: %w", parent, err)
	}

	root := &GCRoot{dir: dir, logger: logger}
	root.cleanup = runtime.AddCleanup(root, removeAbandonedRoot, dir)
	return root, nil
}

func removeAbandonedRoot(dir string) {
	_ = os.RemoveAll(dir)
}

// Dir returns the directory holding the out-link symlinks.
func (r *GCRoot) Dir() string {
	return r.dir
}

// OutLink returns the path passed to nix-build --out-link. nix-build
// creates "result" for the first output and "result-2", "result-3",
// and so on for the rest.
func (r *GCRoot) OutLink() string {
	return filepath.Join(r.dir, "result")
}

// Close removes the directory and everything in it. Store paths
// obtained with this root may be garbage collected afterwards. Close is
// idempotent; every call returns the result of the first.
func (r *GCRoot) Close() error {
	r.closeOnce.Do(func() {
		r.cleanup.Stop()
		r.closeErr = os.RemoveAll(r.dir)
		if r.closeErr != nil {
			r.logger.Warn("removing gc root failed", "dir", r.dir, "error", r.closeErr)
			return
		}
		r.logger.Debug("gc root released", "dir", r.dir)
	})
	return r.closeErr
}

// DefaultGCRootDir returns $XDG_RUNTIME_DIR when it is set and
// writable (a per-user tmpfs on systemd machines), or os.TempDir.
func DefaultGCRootDir() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		if unix.Access(runtimeDir, unix.W_OK|unix.X_OK) == nil {
			return runtimeDir
		}
	}
	return os.TempDir()
}
