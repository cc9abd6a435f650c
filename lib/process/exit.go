// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitCoder is implemented by errors that carry their own exit code,
// such as cli.ExitError.
type exitCoder interface {
	ExitCode() int
}

// ExitCode returns the process exit code for err: 0 for nil, the
// error's own code when it implements ExitCode() int, else 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// Report writes "error: err" to w. Errors carrying their own exit code
// are not written: the command that returned one has already printed
// its output.
func Report(w io.Writer, err error) {
	if err == nil {
		return
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// Fatal reports err to stderr and exits with [ExitCode]. This is the
// standard entrypoint error handler. Use it in main() for errors from
// run() where the structured logger may not be initialized.
func Fatal(err error) {
	Report(os.Stderr, err)
	os.Exit(ExitCode(err))
}
