// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/nixcall/lib/lines"
)

// invocation is a fully resolved command: what to run, with which
// arguments and environment additions.
type invocation struct {
	// name is the binary as configured, used in errors and logs.
	name string
	path string
	args []string
	env  []string
}

// prepare resolves binary and returns the invocation for arguments.
// An unresolvable binary is an ErrorNotFound failure.
func prepare(environment *Environment, binary string, arguments []string) (invocation, error) {
	resolved := invocation{name: binary, args: arguments, env: environment.childEnv()}
	path, err := FindBinary(binary)
	if err != nil {
		return resolved, resolved.failure(ErrorNotFound, err)
	}
	resolved.path = path
	return resolved, nil
}

// nixPath returns the NIX_PATH the child will see: the last NIX_PATH
// entry among the environment additions, else the inherited value.
func (inv invocation) nixPath() string {
	for _, entry := range slices.Backward(inv.env) {
		if value, ok := strings.CutPrefix(entry, "NIX_PATH="); ok {
			return value
		}
	}
	return os.Getenv("NIX_PATH")
}

func (inv invocation) failure(kind ErrorKind, err error) *BuildError {
	return &BuildError{Kind: kind, Program: inv.name, Args: inv.args, Err: err}
}

func (inv invocation) outputFailure(message string) *BuildError {
	return &BuildError{Kind: ErrorOutput, Program: inv.name, Args: inv.args, Message: message}
}

// Run executes a Nix binary with arbitrary arguments and decodes its
// stdout with decoder. binary is resolved with [FindBinary]. It is the
// process runner behind [Value] and [CallOpts.Paths], exposed for
// commands this package does not wrap (nix-store --query, nix eval):
//
//	paths, err := nix.Run(ctx, nil, "nix-store",
//	    []string{"--query", "--requisites", path}, nix.LinesDecoder())
func Run[T any](ctx context.Context, environment *Environment, binary string, arguments []string, decoder Decoder[T]) (T, error) {
	resolved, err := prepare(environment, binary, arguments)
	if err != nil {
		var zero T
		return zero, err
	}
	return execute(ctx, environment.logger(), resolved, decoder)
}

// execute starts the process with stdout and stderr piped, drains both
// concurrently, and reaps it. stderr is collected line by line; stdout
// goes to decoder and whatever decoder leaves unread is discarded, so
// the child can never block on a full pipe. Both drains finish before
// the exit status is examined.
//
// A non-zero exit returns ErrorExit with every stderr line and drops
// the decoded value. A successful exit with a decoder error returns
// ErrorDecode.
func execute[T any](ctx context.Context, logger *slog.Logger, inv invocation, decoder Decoder[T]) (T, error) {
	var zero T

	command := exec.CommandContext(ctx, inv.path, inv.args...)

	// Nix and any wrapper script run in their own process group so that
	// cancellation reaches every process holding the pipes open, not
	// just the direct child.
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	command.Cancel = func() error {
		err := unix.Kill(-command.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}

	if len(inv.env) > 0 {
		command.Env = append(os.Environ(), inv.env...)
	}

	stdout, err := command.StdoutPipe()
	if err != nil {
		return zero, inv.failure(ErrorIO, err)
	}
	stderr, err := command.StderrPipe()
	if err != nil {
		return zero, inv.failure(ErrorIO, err)
	}

	logger.Debug("running nix", "program", inv.name, "path", inv.path, "args", inv.args)

	if err := command.Start(); err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
			return zero, inv.failure(ErrorNotFound, err)
		}
		return zero, inv.failure(ErrorIO, err)
	}

	var (
		group sync.WaitGroup

		stderrLines []string
		stderrErr   error

		value     T
		decodeErr error
		stdoutErr error
	)

	group.Go(func() {
		for line, err := range lines.NewReader(stderr).All() {
			if err != nil {
				stderrErr = err
				break
			}
			logger.Debug("nix stderr", "program", inv.name, "line", line)
			stderrLines = append(stderrLines, line)
		}
		// After a read error, keep the pipe empty until the child exits.
		_, _ = io.Copy(io.Discard, stderr)
	})

	group.Go(func() {
		value, decodeErr = decoder.Decode(stdout)
		_, stdoutErr = io.Copy(io.Discard, stdout)
	})

	group.Wait()
	waitErr := command.Wait()

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, inv.failure(ErrorIO, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			logger.Debug("nix failed", "program", inv.name, "status", exitErr.ProcessState.String(),
				"stderr_lines", len(stderrLines))
			return zero, &BuildError{
				Kind:     ErrorExit,
				Program:  inv.name,
				Args:     inv.args,
				ExitCode: exitErr.ExitCode(),
				Status:   exitErr.ProcessState.String(),
				Stderr:   stderrLines,
				Err:      exitErr,
			}
		}
		return zero, inv.failure(ErrorIO, waitErr)
	}

	if stderrErr != nil {
		return zero, inv.failure(ErrorIO, stderrErr)
	}
	if decodeErr != nil {
		decodeFailure := inv.failure(ErrorDecode, decodeErr)
		decodeFailure.Stderr = stderrLines
		return zero, decodeFailure
	}
	if stdoutErr != nil {
		return zero, inv.failure(ErrorIO, stdoutErr)
	}

	return value, nil
}
