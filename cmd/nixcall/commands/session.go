// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/nixcall/cmd/nixcall/cli"
	"github.com/bureau-foundation/nixcall/lib/config"
	"github.com/bureau-foundation/nixcall/lib/evalcache"
	"github.com/bureau-foundation/nixcall/lib/nix"
)

// session is the resolved configuration of one command invocation.
type session struct {
	config      *config.Config
	logger      *slog.Logger
	environment *nix.Environment
}

// openSession resolves the configuration and builds the Nix
// environment, logging to stderr.
func (g *globalParams) openSession(command string, stderr io.Writer) (*session, error) {
	cfg, err := config.Resolve(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
	}
	logger := cli.NewLogger(stderr, level).With("command", command)

	environment := &nix.Environment{
		Logger:            logger,
		InstantiateBinary: cfg.Nix.Instantiate,
		BuildBinary:       cfg.Nix.Build,
		GCRootDir:         cfg.GCRoot.Dir,
		NixPath:           cfg.Nix.NixPath,
		Env:               cfg.ChildEnv(),
	}

	if cfg.Cache.Enabled {
		compression, err := evalcache.ParseCompression(cfg.Cache.Compression)
		if err != nil {
			return nil, fmt.Errorf("cache.compression: %w", err)
		}
		cache, err := evalcache.Open(cfg.Cache.Dir, compression, logger.With("component", "evalcache"))
		if err != nil {
			return nil, err
		}
		environment.Cache = cache
		logger.Debug("evaluation cache enabled", "dir", cache.Dir(), "compression", compression.String())
	}

	return &session{config: cfg, logger: logger, environment: environment}, nil
}

// callContext bounds a single Nix invocation by --timeout, if set.
func (g *globalParams) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if g.Timeout > 0 {
		return context.WithTimeout(parent, g.Timeout)
	}
	return context.WithCancel(parent)
}
