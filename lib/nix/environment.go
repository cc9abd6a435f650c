// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"log/slog"
	"strings"
)

// Default binary names, resolved through [FindBinary].
const (
	DefaultInstantiateBinary = "nix-instantiate"
	DefaultBuildBinary       = "nix-build"
)

// Environment configures how calls reach Nix. The zero value (and a nil
// *Environment) uses the default binaries, the default GC root
// directory, the inherited process environment, no cache, and discards
// log output.
type Environment struct {
	// Logger receives debug records for each invocation and each line
	// the child writes to stderr.
	Logger *slog.Logger

	// InstantiateBinary is the evaluator used by [Value]. A bare name
	// is looked up with FindBinary; a path is used as given.
	InstantiateBinary string

	// BuildBinary is the builder used by [CallOpts.Paths] and
	// [CallOpts.Path].
	BuildBinary string

	// GCRootDir is the parent directory for per-call GC root
	// directories. Empty means [DefaultGCRootDir].
	GCRootDir string

	// NixPath entries are joined with ":" and passed as NIX_PATH,
	// replacing any inherited value.
	NixPath []string

	// Env holds extra KEY=VALUE entries appended to the inherited
	// environment. Later entries win.
	Env []string

	// Cache, when set, answers [Value] calls from previously stored
	// evaluator output. Builds are never cached.
	Cache ValueCache
}

var discardLogger = slog.New(slog.DiscardHandler)

func (e *Environment) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return discardLogger
	}
	return e.Logger
}

func (e *Environment) instantiateBinary() string {
	if e == nil || e.InstantiateBinary == "" {
		return DefaultInstantiateBinary
	}
	return e.InstantiateBinary
}

func (e *Environment) buildBinary() string {
	if e == nil || e.BuildBinary == "" {
		return DefaultBuildBinary
	}
	return e.BuildBinary
}

func (e *Environment) gcRootDir() string {
	if e == nil || e.GCRootDir == "" {
		return DefaultGCRootDir()
	}
	return e.GCRootDir
}

func (e *Environment) cache() ValueCache {
	if e == nil {
		return nil
	}
	return e.Cache
}

// childEnv returns the entries to append to os.Environ for the child,
// or nil when the child simply inherits.
func (e *Environment) childEnv() []string {
	if e == nil {
		return nil
	}
	var extra []string
	if len(e.NixPath) > 0 {
		extra = append(extra, "NIX_PATH="+strings.Join(e.NixPath, ":"))
	}
	extra = append(extra, e.Env...)
	return extra
}
