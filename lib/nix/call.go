// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"bytes"
	"context"
	"fmt"
)

type inputKind int

const (
	inputExpression inputKind = iota
	inputFile
)

// input is either an inline expression or a file path. The kind is
// fixed by the CallOpts constructor.
type input struct {
	kind  inputKind
	value string
}

type argstr struct {
	name  string
	value string
}

// CallOpts describes one Nix invocation. Build it with [Expression] or
// [File], refine it with [CallOpts.Attribute] and [CallOpts.ArgStr],
// then run it with [Value], [CallOpts.Paths], or [CallOpts.Path].
//
// Builder methods mutate and return the receiver for chaining. Nothing
// runs until a terminal operation is called, and terminal operations
// may be called any number of times: each is an independent process.
// A CallOpts must not be mutated while a terminal operation is running.
type CallOpts struct {
	input        input
	attribute    string
	hasAttribute bool
	argstrs      []argstr
	environment  *Environment
}

// Expression returns a CallOpts that evaluates the Nix expression expr.
func Expression(expr string) *CallOpts {
	return &CallOpts{input: input{kind: inputExpression, value: expr}}
}

// File returns a CallOpts that evaluates the Nix file at path.
func File(path string) *CallOpts {
	return &CallOpts{input: input{kind: inputFile, value: path}}
}

// Attribute selects a sub-attribute of the evaluated expression. Only
// one attribute is supported; calling Attribute again replaces it.
// Passing several -A flags to nix-instantiate --eval concatenates the
// results ("12" for a = 1 and b = 2), which no decoder can take apart.
func (c *CallOpts) Attribute(attribute string) *CallOpts {
	c.attribute = attribute
	c.hasAttribute = true
	return c
}

// ArgStr passes value as the string argument name to the expression's
// top-level function. Setting the same name again replaces the value
// and keeps the argument's original position.
func (c *CallOpts) ArgStr(name, value string) *CallOpts {
	for i := range c.argstrs {
		if c.argstrs[i].name == name {
			c.argstrs[i].value = value
			return c
		}
	}
	c.argstrs = append(c.argstrs, argstr{name: name, value: value})
	return c
}

// WithEnvironment sets the binaries, logger, GC root directory, and
// cache used by terminal operations. A nil environment restores the
// defaults.
func (c *CallOpts) WithEnvironment(environment *Environment) *CallOpts {
	c.environment = environment
	return c
}

// inputFile returns the input file path, or "" for an expression.
func (c *CallOpts) inputFile() string {
	if c.input.kind == inputFile {
		return c.input.value
	}
	return ""
}

// Value evaluates opts with nix-instantiate --eval --json --strict and
// decodes the printed JSON value into T:
//
//	n, err := nix.Value[int](ctx, nix.Expression("let x = 5; in x"))
//
// Value is a function rather than a method because Go methods cannot
// take type parameters.
func Value[T any](ctx context.Context, opts *CallOpts) (T, error) {
	var zero T
	environment := opts.environment

	arguments := append([]string{"--eval", "--json", "--strict"}, opts.commandArguments()...)
	invocation, err := prepare(environment, environment.instantiateBinary(), arguments)
	if err != nil {
		return zero, err
	}

	cache := environment.cache()
	if cache == nil {
		return execute[T](ctx, environment.logger(), invocation, jsonDecoder[T]{})
	}

	logger := environment.logger()
	request := CacheRequest{
		Program:     invocation.path,
		Args:        invocation.args,
		Environment: invocation.env,
		File:        opts.inputFile(),
		NixPath:     invocation.nixPath(),
	}

	cached, found, err := cache.Lookup(request)
	if err != nil {
		logger.Warn("evaluation cache lookup failed", "program", invocation.name, "error", err)
	}
	if found {
		logger.Debug("evaluation cache hit", "program", invocation.name, "args", invocation.args)
		value, err := jsonDecoder[T]{}.Decode(bytes.NewReader(cached))
		if err != nil {
			return zero, invocation.failure(ErrorDecode, fmt.Errorf("cached output: %w", err))
		}
		return value, nil
	}

	recorder := &recordingDecoder[T]{decoder: jsonDecoder[T]{}}
	value, err := execute[T](ctx, logger, invocation, recorder)
	if err != nil {
		return zero, err
	}
	if err := cache.Store(request, recorder.output.Bytes()); err != nil {
		logger.Warn("evaluation cache store failed", "program", invocation.name, "error", err)
	}
	return value, nil
}

// Paths builds opts with nix-build and returns every output store path,
// in the order nix-build printed them, together with the GC root that
// keeps them alive. The slice is never empty on success: a build that
// prints no paths is an [ErrorOutput] failure.
//
// The caller owns the returned GCRoot and must Close it once the paths
// are no longer needed. On failure no GCRoot is returned and the
// temporary directory has already been removed.
func (c *CallOpts) Paths(ctx context.Context) ([]StorePath, *GCRoot, error) {
	paths, root, _, err := c.build(ctx)
	return paths, root, err
}

// build runs nix-build for Paths and Path, also returning the
// invocation so callers can attribute their own output failures to it.
func (c *CallOpts) build(ctx context.Context) ([]StorePath, *GCRoot, invocation, error) {
	environment := c.environment
	logger := environment.logger()

	root, err := NewGCRoot(environment.gcRootDir(), logger)
	if err != nil {
		return nil, nil, invocation{}, &BuildError{Kind: ErrorIO, Program: environment.buildBinary(), Err: err}
	}

	arguments := append([]string{"--out-link", root.OutLink()}, c.commandArguments()...)
	resolved, err := prepare(environment, environment.buildBinary(), arguments)
	if err != nil {
		root.Close()
		return nil, nil, resolved, err
	}

	paths, err := execute[[]StorePath](ctx, logger, resolved, storePathDecoder{})
	if err != nil {
		root.Close()
		return nil, nil, resolved, err
	}

	if len(paths) == 0 {
		root.Close()
		return nil, nil, resolved, resolved.outputFailure("expected at least one build output, got zero")
	}

	return paths, root, resolved, nil
}

// Path is [CallOpts.Paths] for a build with exactly one output. Zero or
// several outputs are an [ErrorOutput] failure.
func (c *CallOpts) Path(ctx context.Context) (StorePath, *GCRoot, error) {
	paths, root, resolved, err := c.build(ctx)
	if err != nil {
		return StorePath{}, nil, err
	}

	if len(paths) != 1 {
		root.Close()
		return StorePath{}, nil, resolved.outputFailure("expected exactly one build output, got more")
	}

	return paths[0], root, nil
}
