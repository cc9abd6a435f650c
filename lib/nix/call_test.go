// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/nixcall/lib/testutil"
)

// fakeEnvironment returns an Environment whose evaluator and builder are
// shell scripts with the given bodies, rooting builds in a private
// directory.
func fakeEnvironment(t *testing.T, instantiateBody, buildBody string) *Environment {
	t.Helper()
	return &Environment{
		InstantiateBinary: testutil.WriteScript(t, "nix-instantiate", instantiateBody),
		BuildBinary:       testutil.WriteScript(t, "nix-build", buildBody),
		GCRootDir:         t.TempDir(),
	}
}

// requireEmptyDir fails the test if dir has any entries, i.e. a GC root
// directory leaked.
func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("%s has %d leftover entries, first %q", dir, len(entries), entries[0].Name())
	}
}

// countingScript prefixes body with a line that appends to a counter
// file, and returns the script body and the counter file path.
func countingScript(t *testing.T, body string) (string, string) {
	t.Helper()
	counter := filepath.Join(t.TempDir(), "invocations")
	return "echo x >> '" + counter + "'\n" + body, counter
}

func invocationCount(t *testing.T, counter string) int {
	t.Helper()
	data, err := os.ReadFile(counter)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return strings.Count(string(data), "\n")
}

func TestValue_Integer(t *testing.T) {
	t.Parallel()

	argumentsFile := filepath.Join(t.TempDir(), "args")
	environment := fakeEnvironment(t, testutil.ArgumentRecorder(argumentsFile)+"\nprintf '5\\n'", "exit 1")

	got, err := Value[int](context.Background(), Expression("let x = 5; in x").WithEnvironment(environment))
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != 5 {
		t.Errorf("Value = %d, want 5", got)
	}

	wantArguments := []string{"--eval", "--json", "--strict", "--expr", "let x = 5; in x"}
	if arguments := testutil.ReadArguments(t, argumentsFile); !slices.Equal(arguments, wantArguments) {
		t.Errorf("nix-instantiate arguments = %q, want %q", arguments, wantArguments)
	}
}

func TestValue_ArgStr(t *testing.T) {
	t.Parallel()

	// After --eval --json --strict --argstr, $5 is the argument name and $6 its value.
	environment := fakeEnvironment(t, `printf '"Hello, %s!"\n' "$6"`, "exit 1")

	opts := Expression(`{ name }: "Hello, ${name}!"`).ArgStr("name", "Jill").WithEnvironment(environment)
	got, err := Value[string](context.Background(), opts)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != "Hello, Jill!" {
		t.Errorf("Value = %q, want %q", got, "Hello, Jill!")
	}
}

func TestValue_Struct(t *testing.T) {
	t.Parallel()

	type author struct {
		Name          string `json:"name"`
		Contributions int    `json:"contributions"`
	}

	environment := fakeEnvironment(t, `printf '[{"name":"Jill","contributions":99}]\n'`, "exit 1")
	opts := Expression("{ name }: { contributors = [ { inherit name; contributions = 99; } ]; }").
		ArgStr("name", "Jill").
		Attribute("contributors").
		WithEnvironment(environment)

	got, err := Value[[]author](context.Background(), opts)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	want := []author{{Name: "Jill", Contributions: 99}}
	if !slices.Equal(got, want) {
		t.Errorf("Value = %+v, want %+v", got, want)
	}
}

func TestValue_DecodeFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
	}{
		{name: "not json", output: `printf 'not json\n'`},
		{name: "wrong type", output: `printf '"five"\n'`},
		{name: "trailing value", output: `printf '5 6\n'`},
		{name: "empty output", output: `exit 0`},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			environment := fakeEnvironment(t, "echo 'evaluating' >&2\n"+testCase.output, "exit 1")
			_, err := Value[int](context.Background(), Expression("x").WithEnvironment(environment))
			if !IsDecode(err) {
				t.Fatalf("Value error = %v, want a decode error", err)
			}
			if IsExit(err) {
				t.Errorf("decode error also classified as exit error")
			}
			var buildErr *BuildError
			errors.As(err, &buildErr)
			if !slices.Equal(buildErr.Stderr, []string{"evaluating"}) {
				t.Errorf("Stderr = %q, want [evaluating]", buildErr.Stderr)
			}
		})
	}
}

func TestValue_ExitFailure(t *testing.T) {
	t.Parallel()

	environment := fakeEnvironment(t, `printf '5\n'
echo "error: undefined variable 'y'" >&2
echo "       at «string»:1:1:" >&2
exit 3`, "exit 1")

	_, err := Value[int](context.Background(), Expression("y").WithEnvironment(environment))
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Value error = %v, want *BuildError", err)
	}
	if buildErr.Kind != ErrorExit {
		t.Fatalf("Kind = %s, want exit", buildErr.Kind)
	}
	if buildErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", buildErr.ExitCode)
	}
	wantStderr := []string{"error: undefined variable 'y'", "       at «string»:1:1:"}
	if !slices.Equal(buildErr.Stderr, wantStderr) {
		t.Errorf("Stderr = %q, want %q", buildErr.Stderr, wantStderr)
	}
	if buildErr.Program != environment.InstantiateBinary {
		t.Errorf("Program = %q, want %q", buildErr.Program, environment.InstantiateBinary)
	}
	if !slices.Contains(buildErr.Args, "--strict") {
		t.Errorf("Args = %q, want the invocation's arguments", buildErr.Args)
	}
}

func TestValue_NotFound(t *testing.T) {
	t.Parallel()

	environment := &Environment{InstantiateBinary: filepath.Join(t.TempDir(), "nix-instantiate")}
	_, err := Value[int](context.Background(), Expression("1").WithEnvironment(environment))
	if !IsNotFound(err) {
		t.Fatalf("Value error = %v, want not-found", err)
	}
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Errorf("error does not wrap ErrBinaryNotFound: %v", err)
	}
}

func TestValue_ChildEnvironment(t *testing.T) {
	t.Parallel()

	environment := fakeEnvironment(t, `printf '["%s","%s"]\n' "$NIX_PATH" "$NIXCALL_TEST_MARKER"`, "exit 1")
	environment.NixPath = []string{"nixpkgs=/srv/nixpkgs", "overlay=/srv/overlay"}
	environment.Env = []string{"NIXCALL_TEST_MARKER=present"}

	got, err := Value[[]string](context.Background(), Expression("x").WithEnvironment(environment))
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	want := []string{"nixpkgs=/srv/nixpkgs:overlay=/srv/overlay", "present"}
	if !slices.Equal(got, want) {
		t.Errorf("child saw %q, want %q", got, want)
	}
}

func TestValue_RepeatedCallsAreIndependent(t *testing.T) {
	t.Parallel()

	body, counter := countingScript(t, `printf '{"a":1}\n'`)
	environment := fakeEnvironment(t, body, "exit 1")
	opts := Expression("{ a = 1; }").WithEnvironment(environment)

	asMap, err := Value[map[string]int](context.Background(), opts)
	if err != nil {
		t.Fatalf("Value[map]: %v", err)
	}
	if asMap["a"] != 1 {
		t.Errorf("Value[map] = %v, want a=1", asMap)
	}

	raw, err := Value[json.RawMessage](context.Background(), opts)
	if err != nil {
		t.Fatalf("Value[RawMessage]: %v", err)
	}
	if string(raw) != `{"a":1}` {
		t.Errorf("Value[RawMessage] = %s, want {\"a\":1}", raw)
	}

	if count := invocationCount(t, counter); count != 2 {
		t.Errorf("evaluator ran %d times, want 2", count)
	}
}

// memoryCache is a ValueCache backed by a map.
type memoryCache struct {
	mutex    sync.Mutex
	entries  map[string][]byte
	requests []CacheRequest
}

func (c *memoryCache) key(request CacheRequest) string {
	return request.Program + "\x00" + strings.Join(request.Args, "\x00") + "\x00" + request.File +
		"\x00" + request.NixPath
}

func (c *memoryCache) Lookup(request CacheRequest) ([]byte, bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.requests = append(c.requests, request)
	data, ok := c.entries[c.key(request)]
	return data, ok, nil
}

func (c *memoryCache) Store(request CacheRequest, output []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.entries == nil {
		c.entries = make(map[string][]byte)
	}
	c.entries[c.key(request)] = slices.Clone(output)
	return nil
}

func TestValue_CacheHitSkipsProcess(t *testing.T) {
	t.Parallel()

	body, counter := countingScript(t, `printf '42\n'`)
	environment := fakeEnvironment(t, body, "exit 1")
	cache := &memoryCache{}
	environment.Cache = cache

	nixFile := filepath.Join(t.TempDir(), "default.nix")
	opts := File(nixFile).Attribute("answer").WithEnvironment(environment)

	for attempt := range 3 {
		got, err := Value[int](context.Background(), opts)
		if err != nil {
			t.Fatalf("attempt %d: Value: %v", attempt, err)
		}
		if got != 42 {
			t.Errorf("attempt %d: Value = %d, want 42", attempt, got)
		}
	}

	if count := invocationCount(t, counter); count != 1 {
		t.Errorf("evaluator ran %d times, want 1", count)
	}
	if stored := cache.entries[cache.key(cache.requests[0])]; string(stored) != "42\n" {
		t.Errorf("cached output = %q, want %q", stored, "42\n")
	}
	request := cache.requests[0]
	if request.File != nixFile {
		t.Errorf("CacheRequest.File = %q, want %q", request.File, nixFile)
	}
	if request.Program != environment.InstantiateBinary {
		t.Errorf("CacheRequest.Program = %q, want %q", request.Program, environment.InstantiateBinary)
	}
}

func TestValue_CacheSkipsFailures(t *testing.T) {
	t.Parallel()

	environment := fakeEnvironment(t, "echo broken >&2\nexit 1", "exit 1")
	cache := &memoryCache{}
	environment.Cache = cache

	_, err := Value[int](context.Background(), Expression("x").WithEnvironment(environment))
	if !IsExit(err) {
		t.Fatalf("Value error = %v, want exit error", err)
	}
	if len(cache.entries) != 0 {
		t.Errorf("failed evaluation was cached: %v", cache.entries)
	}
}

func TestValue_CacheKeyFollowsInheritedNixPath(t *testing.T) {
	// Not parallel: sets NIX_PATH for the process.
	body, counter := countingScript(t, `printf '1\n'`)
	environment := fakeEnvironment(t, body, "exit 1")
	cache := &memoryCache{}
	environment.Cache = cache
	opts := Expression("<nixpkgs>").WithEnvironment(environment)

	for _, nixPath := range []string{"nixpkgs=/src/a", "nixpkgs=/src/a", "nixpkgs=/src/b"} {
		t.Setenv("NIX_PATH", nixPath)
		if _, err := Value[int](context.Background(), opts); err != nil {
			t.Fatalf("Value with NIX_PATH=%s: %v", nixPath, err)
		}
	}

	if count := invocationCount(t, counter); count != 2 {
		t.Errorf("evaluator ran %d times, want 2 (one per distinct NIX_PATH)", count)
	}
	if got := cache.requests[2].NixPath; got != "nixpkgs=/src/b" {
		t.Errorf("CacheRequest.NixPath = %q, want %q", got, "nixpkgs=/src/b")
	}
}

func TestValue_CacheKeyPrefersConfiguredNixPath(t *testing.T) {
	// Not parallel: sets NIX_PATH for the process.
	t.Setenv("NIX_PATH", "nixpkgs=/inherited")

	environment := fakeEnvironment(t, `printf '1\n'`, "exit 1")
	environment.NixPath = []string{"nixpkgs=/configured", "/extra"}
	cache := &memoryCache{}
	environment.Cache = cache

	if _, err := Value[int](context.Background(), Expression("x").WithEnvironment(environment)); err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got, want := cache.requests[0].NixPath, "nixpkgs=/configured:/extra"; got != want {
		t.Errorf("CacheRequest.NixPath = %q, want %q", got, want)
	}
}

// fakeBuildBody records arguments, creates the out-link symlink the way
// nix-build does, and prints the given store paths.
func fakeBuildBody(argumentsFile string, paths ...string) string {
	var body strings.Builder
	body.WriteString(testutil.ArgumentRecorder(argumentsFile) + "\n")
	body.WriteString(`ln -s /nix/store/00000000000000000000000000000000-fake "$2"` + "\n")
	for _, path := range paths {
		body.WriteString("echo '" + path + "'\n")
	}
	return body.String()
}

func TestPaths_MultipleOutputs(t *testing.T) {
	t.Parallel()

	argumentsFile := filepath.Join(t.TempDir(), "args")
	gitPath := "/nix/store/0aaa-git-2.44.0"
	helloPath := "/nix/store/1bbb-hello-2.12.1"
	environment := fakeEnvironment(t, "exit 1", fakeBuildBody(argumentsFile, gitPath, helloPath))

	opts := Expression("{ inherit (import <nixpkgs> {}) hello git; }").WithEnvironment(environment)
	paths, root, err := opts.Paths(context.Background())
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}

	want := []StorePath{NewStorePath(gitPath), NewStorePath(helloPath)}
	if !slices.Equal(paths, want) {
		t.Errorf("Paths = %v, want %v (emission order)", paths, want)
	}

	if filepath.Dir(root.Dir()) != environment.GCRootDir {
		t.Errorf("gc root %s is not under %s", root.Dir(), environment.GCRootDir)
	}
	if _, err := os.Lstat(root.OutLink()); err != nil {
		t.Errorf("out-link not created by nix-build: %v", err)
	}

	arguments := testutil.ReadArguments(t, argumentsFile)
	wantArguments := []string{"--out-link", root.OutLink(), "--expr", "{ inherit (import <nixpkgs> {}) hello git; }"}
	if !slices.Equal(arguments, wantArguments) {
		t.Errorf("nix-build arguments = %q, want %q", arguments, wantArguments)
	}

	if err := root.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(root.Dir()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("gc root directory still present after Close: %v", err)
	}
	// The values outlive the root; only the filesystem objects are unprotected.
	if paths[1].Path() != helloPath {
		t.Errorf("store path value changed after Close: %q", paths[1].Path())
	}
}

func TestPaths_ZeroOutputs(t *testing.T) {
	t.Parallel()

	environment := fakeEnvironment(t, "exit 1", "echo 'building nothing' >&2")
	_, root, err := Expression("{ }").WithEnvironment(environment).Paths(context.Background())
	if !IsOutput(err) {
		t.Fatalf("Paths error = %v, want output error", err)
	}
	if IsExit(err) {
		t.Errorf("output error also classified as exit error")
	}
	if root != nil {
		t.Errorf("Paths returned a gc root alongside an error")
	}
	if !strings.Contains(err.Error(), "expected at least one build output, got zero") {
		t.Errorf("error = %q", err)
	}
	requireEmptyDir(t, environment.GCRootDir)
}

func TestPaths_ExitFailure(t *testing.T) {
	t.Parallel()

	environment := fakeEnvironment(t, "exit 1", "echo 'error: builder failed' >&2\nexit 100")
	_, _, err := File("./default.nix").WithEnvironment(environment).Paths(context.Background())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) || buildErr.Kind != ErrorExit {
		t.Fatalf("Paths error = %v, want exit error", err)
	}
	if buildErr.ExitCode != 100 {
		t.Errorf("ExitCode = %d, want 100", buildErr.ExitCode)
	}
	if !slices.Equal(buildErr.Stderr, []string{"error: builder failed"}) {
		t.Errorf("Stderr = %q", buildErr.Stderr)
	}
	requireEmptyDir(t, environment.GCRootDir)
}

func TestPath_SingleOutput(t *testing.T) {
	t.Parallel()

	argumentsFile := filepath.Join(t.TempDir(), "args")
	helloPath := "/nix/store/1bbb-hello-2.12.1"
	environment := fakeEnvironment(t, "exit 1", fakeBuildBody(argumentsFile, helloPath))

	path, root, err := Expression("(import <nixpkgs> {}).hello").Attribute("out").WithEnvironment(environment).Path(context.Background())
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	defer root.Close()

	if !strings.Contains(path.Path(), "hello-") {
		t.Errorf("Path = %q, want a hello store path", path)
	}
}

func TestPath_MultipleOutputs(t *testing.T) {
	t.Parallel()

	argumentsFile := filepath.Join(t.TempDir(), "args")
	environment := fakeEnvironment(t, "exit 1",
		fakeBuildBody(argumentsFile, "/nix/store/0aaa-git-2.44.0", "/nix/store/1bbb-hello-2.12.1"))

	_, root, err := Expression("{ }").WithEnvironment(environment).Path(context.Background())
	if !IsOutput(err) {
		t.Fatalf("Path error = %v, want output error", err)
	}
	if root != nil {
		t.Errorf("Path returned a gc root alongside an error")
	}
	if !strings.Contains(err.Error(), "expected exactly one build output, got more") {
		t.Errorf("error = %q", err)
	}
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Path error = %T, want *BuildError", err)
	}
	if !slices.Contains(buildErr.Args, "--out-link") || !strings.Contains(buildErr.Command(), "--expr") {
		t.Errorf("Command() = %q, want the full nix-build argument vector", buildErr.Command())
	}
	requireEmptyDir(t, environment.GCRootDir)
}

func TestPaths_BuildNotFound(t *testing.T) {
	t.Parallel()

	environment := &Environment{
		BuildBinary: filepath.Join(t.TempDir(), "nix-build"),
		GCRootDir:   t.TempDir(),
	}
	_, _, err := Expression("{ }").WithEnvironment(environment).Paths(context.Background())
	if !IsNotFound(err) {
		t.Fatalf("Paths error = %v, want not-found", err)
	}
	requireEmptyDir(t, environment.GCRootDir)
}
