// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind classifies a [BuildError].
type ErrorKind int

const (
	// ErrorIO is any spawn, pipe, or wait failure other than a missing
	// binary, including cancellation through the call's context.
	ErrorIO ErrorKind = iota

	// ErrorNotFound means the Nix binary could not be located or
	// started because it does not exist. Callers should tell the user
	// to install Nix.
	ErrorNotFound

	// ErrorExit means the process ran and exited unsuccessfully.
	// ExitCode, Status, and Stderr describe the failure.
	ErrorExit

	// ErrorDecode means the process succeeded but its stdout could not
	// be decoded.
	ErrorDecode

	// ErrorOutput means the process succeeded with well-formed output
	// of the wrong cardinality (no paths, or several where one was
	// required).
	ErrorOutput
)

// String returns the lower-case name of the kind.
func (kind ErrorKind) String() string {
	switch kind {
	case ErrorIO:
		return "io"
	case ErrorNotFound:
		return "not-found"
	case ErrorExit:
		return "exit"
	case ErrorDecode:
		return "decode"
	case ErrorOutput:
		return "output"
	default:
		return fmt.Sprintf("unknown(%d)", int(kind))
	}
}

// BuildError is returned by every failed Nix invocation. Callers can use
// errors.As to extract the structured information:
//
//	var buildErr *nix.BuildError
//	if errors.As(err, &buildErr) && buildErr.Kind == nix.ErrorExit {
//	    for _, line := range buildErr.Stderr { ... }
//	}
type BuildError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Program is the binary name as configured (e.g., "nix-build").
	Program string

	// Args are the arguments the program was (or would have been)
	// invoked with.
	Args []string

	// ExitCode is the process exit code for ErrorExit, or -1 when the
	// process was terminated by a signal.
	ExitCode int

	// Status is the human-readable process state for ErrorExit
	// (e.g., "exit status 1", "signal: killed").
	Status string

	// Stderr holds every line the process wrote to stderr, in order.
	// Populated for ErrorExit and ErrorDecode.
	Stderr []string

	// Message describes an ErrorOutput violation.
	Message string

	// Err is the underlying error, if any.
	Err error
}

func (e *BuildError) Error() string {
	switch e.Kind {
	case ErrorNotFound:
		return fmt.Sprintf("%s could not be started: %v (install Nix first)", e.Program, e.Err)
	case ErrorExit:
		var builder strings.Builder
		fmt.Fprintf(&builder, "%s failed with %s", e.Command(), e.Status)
		if len(e.Stderr) > 0 {
			builder.WriteString(":\n")
			builder.WriteString(strings.Join(e.Stderr, "\n"))
		}
		return builder.String()
	case ErrorDecode:
		return fmt.Sprintf("decoding output of %s: %v", e.Program, e.Err)
	case ErrorOutput:
		return fmt.Sprintf("%s: %s", e.Program, e.Message)
	default:
		return fmt.Sprintf("running %s: %v", e.Program, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Command renders the program and its arguments as a single line,
// quoting arguments that contain whitespace or shell metacharacters.
// The result is for display only; nothing here is ever run by a shell.
func (e *BuildError) Command() string {
	parts := make([]string, 0, len(e.Args)+1)
	parts = append(parts, e.Program)
	for _, argument := range e.Args {
		parts = append(parts, quoteArgument(argument))
	}
	return strings.Join(parts, " ")
}

func quoteArgument(argument string) string {
	if argument == "" {
		return `''`
	}
	if strings.ContainsAny(argument, " \t\n\"'\\$`;&|<>(){}*?#~") {
		return strconv.Quote(argument)
	}
	return argument
}

func kindOf(err error) (ErrorKind, bool) {
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		return 0, false
	}
	return buildErr.Kind, true
}

// IsNotFound reports whether err is a BuildError for a missing Nix binary.
func IsNotFound(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == ErrorNotFound
}

// IsExit reports whether err is a BuildError for a non-zero exit.
func IsExit(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == ErrorExit
}

// IsDecode reports whether err is a BuildError for undecodable output.
func IsDecode(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == ErrorDecode
}

// IsOutput reports whether err is a BuildError for output of the wrong
// cardinality.
func IsOutput(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == ErrorOutput
}
