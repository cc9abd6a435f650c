// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/nixcall/lib/testutil"
)

func TestFindBinary_NixBuildOnPath(t *testing.T) {
	t.Parallel()

	// Skipped on machines without Nix installed.
	path, err := FindBinary("nix-build")
	if err != nil {
		t.Skipf("nix-build not available: %v", err)
	}
	if !strings.Contains(path, "nix-build") {
		t.Errorf("FindBinary(\"nix-build\") = %q, expected path containing 'nix-build'", path)
	}
}

func TestFindBinary_ExplicitPath(t *testing.T) {
	t.Parallel()

	script := testutil.WriteScript(t, "fake-nix", "exit 0")
	path, err := FindBinary(script)
	if err != nil {
		t.Fatalf("FindBinary(%q): %v", script, err)
	}
	if path != script {
		t.Errorf("FindBinary(%q) = %q, want the same path", script, path)
	}
}

func TestFindBinary_NonexistentBinary(t *testing.T) {
	t.Parallel()

	_, err := FindBinary("nix-definitely-does-not-exist-abcxyz")
	if err == nil {
		t.Fatal("expected error for nonexistent binary")
	}
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Errorf("error = %v, want ErrBinaryNotFound", err)
	}
	if !strings.Contains(err.Error(), determinateProfileBin) {
		t.Errorf("error = %v, want the profile directory mentioned", err)
	}
}

func TestFindBinary_NonexistentExplicitPath(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nix-build")
	_, err := FindBinary(missing)
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("FindBinary(%q) error = %v, want ErrBinaryNotFound", missing, err)
	}
}
