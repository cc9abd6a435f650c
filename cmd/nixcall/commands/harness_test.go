// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/nixcall/lib/testutil"
)

// harness runs the command tree against fake Nix binaries.
type harness struct {
	app        *app
	stdout     *bytes.Buffer
	stderr     *bytes.Buffer
	configPath string
	gcRoots    string
}

type harnessOptions struct {
	instantiateBody string
	buildBody       string
	// extraConfig is appended to the generated YAML.
	extraConfig string
}

func newHarness(t *testing.T, options harnessOptions) *harness {
	t.Helper()

	instantiate := filepath.Join(t.TempDir(), "absent-nix-instantiate")
	if options.instantiateBody != "" {
		instantiate = testutil.WriteScript(t, "nix-instantiate", options.instantiateBody)
	}
	build := filepath.Join(t.TempDir(), "absent-nix-build")
	if options.buildBody != "" {
		build = testutil.WriteScript(t, "nix-build", options.buildBody)
	}
	gcRoots := t.TempDir()

	configPath := filepath.Join(t.TempDir(), "nixcall.yaml")
	config := "nix:\n" +
		"  instantiate: " + instantiate + "\n" +
		"  build: " + build + "\n" +
		"gc_root:\n" +
		"  dir: " + gcRoots + "\n" +
		options.extraConfig
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &harness{
		app: &app{
			stdout:           stdout,
			stderr:           stderr,
			interruptContext: context.WithCancel,
		},
		stdout:     stdout,
		stderr:     stderr,
		configPath: configPath,
		gcRoots:    gcRoots,
	}
}

// run executes the command tree with --config pointing at the
// generated file.
func (h *harness) run(args ...string) error {
	return h.app.root().Execute(append(args, "--config", h.configPath))
}

// requireNoGCRoots fails if any per-call GC root directory remains.
func (h *harness) requireNoGCRoots(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.gcRoots)
	if err != nil {
		t.Fatalf("reading gc root parent: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Errorf("gc roots left behind: %s", strings.Join(names, ", "))
	}
}

// fakeBuild returns a nix-build body that records its arguments, creates
// the out-link, and prints paths.
func fakeBuild(argumentsFile string, paths ...string) string {
	var body strings.Builder
	if argumentsFile != "" {
		body.WriteString(testutil.ArgumentRecorder(argumentsFile) + "\n")
	}
	body.WriteString(`ln -s /nix/store/00000000000000000000000000000000-fake "$2"` + "\n")
	for _, path := range paths {
		body.WriteString("echo '" + path + "'\n")
	}
	return body.String()
}
