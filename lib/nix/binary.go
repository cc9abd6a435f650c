// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// determinateProfileBin is where Determinate Nix installs its binaries.
// This location is outside PATH by default, so we check it explicitly
// after the PATH lookup fails.
const determinateProfileBin = "/nix/var/nix/profiles/default/bin"

// ErrBinaryNotFound is wrapped by [FindBinary] errors.
var ErrBinaryNotFound = errors.New("nix binary not found")

// FindBinary resolves a Nix binary by name (e.g., "nix-build",
// "nix-instantiate"), checking PATH first and then the standard
// Determinate Nix installation directory. A name containing a path
// separator is used as given and never looked up in the profile
// directory. Returns the absolute path to the binary.
func FindBinary(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return filepath.Abs(path)
	}

	if strings.ContainsRune(name, filepath.Separator) {
		return "", fmt.Errorf("%w: %s is not an executable file", ErrBinaryNotFound, name)
	}

	determinatePath := filepath.Join(determinateProfileBin, name)
	if _, err := os.Stat(determinatePath); err == nil {
		return determinatePath, nil
	}

	return "", fmt.Errorf("%w: %s not on PATH or at %s", ErrBinaryNotFound, name, determinatePath)
}
