// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteScript writes body as an executable /bin/sh script named name in
// a fresh temporary directory and returns its absolute path. The
// directory is removed when the test completes.
//
//	evaluator := testutil.WriteScript(t, "nix-instantiate", `printf '5\n'`)
func WriteScript(t testing.TB, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	content := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("writing script %s: %v", path, err)
	}
	return path
}

// ArgumentRecorder returns a shell fragment that writes the script's
// arguments to file, one per line. Put it at the top of a WriteScript
// body and read the result back with ReadArguments.
func ArgumentRecorder(file string) string {
	return `printf '%s\n' "$@" > '` + file + `'`
}

// ReadArguments returns the arguments saved by ArgumentRecorder.
// Arguments containing newlines are not supported.
func ReadArguments(t testing.TB, file string) []string {
	t.Helper()

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("reading recorded arguments: %v", err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
